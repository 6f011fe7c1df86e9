package validate

import (
	"context"

	"github.com/parrisma/gofr-doc/internal/model"
)

// ImageChecker is the C11 contract this package delegates image-fragment
// URL validation to, kept as an interface here to avoid importing the
// concrete HTTP-fetching implementation into the validation package.
type ImageChecker interface {
	CheckURL(ctx context.Context, url string) error
}

// ImageFragment validates an image fragment's url parameter using the
// injected checker, and reports a missing url as a plain validation issue
// rather than delegating (no network round trip needed to know it's
// absent).
func ImageFragment(ctx context.Context, checker ImageChecker, params map[string]any) []model.ValidationIssue {
	url, ok := params["url"].(string)
	if !ok || url == "" {
		return []model.ValidationIssue{{
			ParameterName: "url",
			ExpectedType:  "string",
			Message:       "image fragments require a non-empty url parameter",
		}}
	}

	if err := checker.CheckURL(ctx, url); err != nil {
		de := model.AsDomainError(err)
		return []model.ValidationIssue{{
			ParameterName: "url",
			Message:       de.Message,
		}}
	}

	return nil
}
