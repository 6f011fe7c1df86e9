package model

import "time"

// Template is a document skeleton: global parameters plus an ordered list
// of embedded fragment definitions. Immutable once loaded from disk.
type Template struct {
	TemplateID   string            `yaml:"template_id" json:"template_id"`
	Group        string            `yaml:"group" json:"group"`
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description" json:"description"`
	GlobalParams []ParameterSchema `yaml:"global_parameters" json:"global_parameters"`
	Fragments    []Fragment        `yaml:"fragments" json:"fragments"`

	// DocumentTemplatePath is the on-disk path to the structural rendering
	// text for the document (document.<ext>).
	DocumentTemplatePath string `yaml:"-" json:"-"`
}

// Fragment is a typed, reusable content block. Embedded fragments inherit
// their owning template's group and are never entered into the standalone
// fragment registry (I2, Design Note §9).
type Fragment struct {
	FragmentID  string            `yaml:"fragment_id" json:"fragment_id"`
	Group       string            `yaml:"group" json:"group"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Parameters  []ParameterSchema `yaml:"parameters" json:"parameters"`

	// TemplatePath is the on-disk path to this fragment's rendering text.
	TemplatePath string `yaml:"-" json:"-"`
}

// Style is a CSS bundle selectable at render time.
type Style struct {
	StyleID     string `yaml:"style_id" json:"style_id"`
	Group       string `yaml:"group" json:"group"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	CSS         string `yaml:"-" json:"-"`
}

// Summary is the slim {id,name,description,group} shape every list()
// query returns, per the registry's query API (spec.md §4.3).
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

// FragmentInstance is one entry in a session's ordered fragment list.
type FragmentInstance struct {
	InstanceGUID string         `json:"fragment_instance_guid"`
	FragmentID   string         `json:"fragment_id"`
	Parameters   map[string]any `json:"parameters"`
	CreatedAt    time.Time      `json:"created_at"`

	// EmbeddedDataURI is populated for image_from_url-flavoured instances
	// (add-time download, see C11) so renders stay offline-safe.
	EmbeddedDataURI string `json:"embedded_data_uri,omitempty"`
}

// Session is a stateful document-assembly workspace.
type Session struct {
	SessionID  string    `json:"session_id"`
	Alias      string    `json:"alias"`
	Group      string    `json:"group"`
	TemplateID string    `json:"template_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	GlobalParameters map[string]any `json:"global_parameters"`
	// RenderReady is sticky once tripped by the first successful
	// set_global_parameters call (I5).
	RenderReady bool `json:"render_ready"`

	Fragments []FragmentInstance `json:"fragments"`
}

// BlobMetadata is one entry in a group's metadata index (C1).
type BlobMetadata struct {
	GUID      string         `json:"guid"`
	Group     string         `json:"group"`
	Format    string         `json:"format"`
	Size      int64          `json:"size"`
	CreatedAt time.Time      `json:"created_at"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// TokenRecord is a persisted auth token: group, issued/expiry, revocation.
type TokenRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	TokenHash   string     `json:"token_hash"`
	TokenPrefix string     `json:"token_prefix"`
	Group       string     `json:"group"`
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Revoked     bool       `json:"revoked"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// Expired reports whether the token's expiry has passed as of now.
func (t TokenRecord) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
