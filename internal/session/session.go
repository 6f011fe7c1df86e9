// Package session implements C5: the document-assembly session engine.
// Sessions are kept in memory for fast alias/UUID resolution and
// persisted to individual JSON files for durability across restarts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parrisma/gofr-doc/internal/model"
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// Engine owns every live session plus the alias↔UUID indices needed to
// resolve either form (Design Note §9: resolve() treats alias and UUID
// identifiers as equivalent).
type Engine struct {
	dir string

	mu           sync.RWMutex
	sessions     map[string]*model.Session    // session_id -> session
	aliasIndex   map[string]map[string]string // group -> alias -> session_id
	reverseAlias map[string]string            // session_id -> alias

	sessionLocksMu sync.Mutex
	sessionLocks   map[string]*sync.Mutex
}

func New(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}
	e := &Engine{
		dir:          dir,
		sessions:     map[string]*model.Session{},
		aliasIndex:   map[string]map[string]string{},
		reverseAlias: map[string]string{},
		sessionLocks: map[string]*sync.Mutex{},
	}
	if err := e.loadAll(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadAll() error {
	entries, err := os.ReadDir(e.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sessions directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			continue
		}
		var s model.Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		e.indexSession(&s)
	}
	return nil
}

func (e *Engine) indexSession(s *model.Session) {
	e.sessions[s.SessionID] = s
	if s.Alias != "" {
		if e.aliasIndex[s.Group] == nil {
			e.aliasIndex[s.Group] = map[string]string{}
		}
		e.aliasIndex[s.Group][s.Alias] = s.SessionID
		e.reverseAlias[s.SessionID] = s.Alias
	}
}

func (e *Engine) lockFor(sessionID string) *sync.Mutex {
	e.sessionLocksMu.Lock()
	defer e.sessionLocksMu.Unlock()
	m, ok := e.sessionLocks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		e.sessionLocks[sessionID] = m
	}
	return m
}

func (e *Engine) persist(s *model.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	final := filepath.Join(e.dir, s.SessionID+".json")
	tmp, err := os.CreateTemp(e.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// CreateSession starts a new session. alias is required at creation,
// must be unique within group, and is permanent once set.
func (e *Engine) CreateSession(ctx context.Context, group, alias, templateID string) (*model.Session, error) {
	if !aliasPattern.MatchString(alias) {
		return nil, model.NewError(model.KindInvalidAlias, "alias is required and must be 3-64 characters of letters, digits, underscore, or hyphen", "choose a non-empty alias", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, taken := e.aliasIndex[group][alias]; taken {
		return nil, model.NewError(model.KindAliasInUse, fmt.Sprintf("alias %q is already in use", alias), "choose a different alias", nil)
	}

	now := time.Now().UTC()
	s := &model.Session{
		SessionID:        uuid.NewString(),
		Alias:            alias,
		Group:            group,
		TemplateID:       templateID,
		CreatedAt:        now,
		UpdatedAt:        now,
		GlobalParameters: map[string]any{},
	}

	if err := e.persist(s); err != nil {
		return nil, err
	}
	e.indexSession(s)

	return cloneSession(s), nil
}

// Resolve looks up a session by alias or UUID within a group. A mismatch
// on group always reports generic SessionNotFound (I10, P8) rather than
// any detail that would let a caller enumerate other groups' sessions.
func (e *Engine) Resolve(group, identifier string) (*model.Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sessionID := identifier
	if id, ok := e.aliasIndex[group][identifier]; ok {
		sessionID = id
	}

	s, ok := e.sessions[sessionID]
	if !ok || s.Group != group {
		return nil, model.ErrSessionNotFound(identifier)
	}
	return cloneSession(s), nil
}

func (e *Engine) resolveLocked(group, identifier string) (*model.Session, error) {
	sessionID := identifier
	if id, ok := e.aliasIndex[group][identifier]; ok {
		sessionID = id
	}
	s, ok := e.sessions[sessionID]
	if !ok || s.Group != group {
		return nil, model.ErrSessionNotFound(identifier)
	}
	return s, nil
}

// mutate runs fn against the live session under both the registry lock
// (to resolve identifier → session) and the session's own mutex (to
// serialize concurrent mutations to the same session), then persists.
func (e *Engine) mutate(group, identifier string, fn func(*model.Session) error) (*model.Session, error) {
	e.mu.Lock()
	s, err := e.resolveLocked(group, identifier)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	sessionID := s.SessionID
	e.mu.Unlock()

	lock := e.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	s, err = e.resolveLocked(group, identifier)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	if err := fn(s); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	s.UpdatedAt = time.Now().UTC()

	if err := e.persist(s); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	result := cloneSession(s)
	e.mu.Unlock()

	return result, nil
}

// SetGlobalParameters merges global parameters into the session and trips
// the sticky render-ready flag (I5) on first successful call.
func (e *Engine) SetGlobalParameters(ctx context.Context, group, identifier string, params map[string]any) (*model.Session, error) {
	return e.mutate(group, identifier, func(s *model.Session) error {
		for k, v := range params {
			s.GlobalParameters[k] = v
		}
		s.RenderReady = true
		return nil
	})
}

// AddFragment inserts a fragment instance at the requested position. The
// position grammar is start, end, before:<guid>, or after:<guid> (empty
// means end).
func (e *Engine) AddFragment(ctx context.Context, group, identifier, fragmentID string, params map[string]any, position string) (string, *model.Session, error) {
	instanceGUID := uuid.NewString()

	s, err := e.mutate(group, identifier, func(s *model.Session) error {
		instance := model.FragmentInstance{
			InstanceGUID: instanceGUID,
			FragmentID:   fragmentID,
			Parameters:   params,
			CreatedAt:    time.Now().UTC(),
		}
		return insertAt(s, instance, position)
	})
	if err != nil {
		return "", nil, err
	}
	return instanceGUID, s, nil
}

// AddImageFragment is AddFragment specialized for image_from_url
// fragments: the caller supplies the already-resolved data URI (C11 ran
// before this call, at add-time, per spec.md §4.5).
func (e *Engine) AddImageFragment(ctx context.Context, group, identifier, fragmentID string, params map[string]any, position, dataURI string) (string, *model.Session, error) {
	instanceGUID := uuid.NewString()

	s, err := e.mutate(group, identifier, func(s *model.Session) error {
		instance := model.FragmentInstance{
			InstanceGUID:    instanceGUID,
			FragmentID:      fragmentID,
			Parameters:      params,
			CreatedAt:       time.Now().UTC(),
			EmbeddedDataURI: dataURI,
		}
		return insertAt(s, instance, position)
	})
	if err != nil {
		return "", nil, err
	}
	return instanceGUID, s, nil
}

func insertAt(s *model.Session, instance model.FragmentInstance, position string) error {
	switch {
	case position == "" || position == "end":
		s.Fragments = append(s.Fragments, instance)
		return nil
	case position == "start":
		s.Fragments = append([]model.FragmentInstance{instance}, s.Fragments...)
		return nil
	case len(position) > 7 && position[:7] == "before:":
		return insertRelative(s, instance, position[7:], 0)
	case len(position) > 6 && position[:6] == "after:":
		return insertRelative(s, instance, position[6:], 1)
	default:
		return model.NewError(model.KindInvalidPosition, fmt.Sprintf("position %q is not start, end, before:<guid>, or after:<guid>", position), "use a valid position value", nil)
	}
}

func insertRelative(s *model.Session, instance model.FragmentInstance, targetGUID string, offset int) error {
	for i, existing := range s.Fragments {
		if existing.InstanceGUID == targetGUID {
			idx := i + offset
			s.Fragments = append(s.Fragments, model.FragmentInstance{})
			copy(s.Fragments[idx+1:], s.Fragments[idx:])
			s.Fragments[idx] = instance
			return nil
		}
	}
	return model.NewError(model.KindInvalidPosition, fmt.Sprintf("no fragment instance with guid %q in this session", targetGUID), "list the session's fragments and retry", nil)
}

// RemoveFragment deletes one fragment instance by its instance guid. The
// guid is never reused even after removal (I6).
func (e *Engine) RemoveFragment(ctx context.Context, group, identifier, instanceGUID string) (*model.Session, error) {
	return e.mutate(group, identifier, func(s *model.Session) error {
		for i, f := range s.Fragments {
			if f.InstanceGUID == instanceGUID {
				s.Fragments = append(s.Fragments[:i], s.Fragments[i+1:]...)
				return nil
			}
		}
		return model.NewError(model.KindNotFound, fmt.Sprintf("fragment instance %q not found in this session", instanceGUID), "list the session's fragments and retry", nil)
	})
}

func (e *Engine) ListSessionFragments(group, identifier string) ([]model.FragmentInstance, error) {
	s, err := e.Resolve(group, identifier)
	if err != nil {
		return nil, err
	}
	return s.Fragments, nil
}

func (e *Engine) GetSessionStatus(group, identifier string) (*model.Session, error) {
	return e.Resolve(group, identifier)
}

// ListActiveSessions returns every session for a group (Q1 decision:
// always group-scoped, even for administrative callers).
func (e *Engine) ListActiveSessions(group string) []model.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []model.Session
	for _, s := range e.sessions {
		if s.Group == group {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AbortSession removes a session from memory and disk entirely.
func (e *Engine) AbortSession(group, identifier string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.resolveLocked(group, identifier)
	if err != nil {
		return err
	}

	delete(e.sessions, s.SessionID)
	if s.Alias != "" {
		delete(e.aliasIndex[s.Group], s.Alias)
		delete(e.reverseAlias, s.SessionID)
	}

	path := filepath.Join(e.dir, s.SessionID+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// ValidateSessionForRender returns SessionNotReady unless
// set_global_parameters has been called at least once (I5).
func (e *Engine) ValidateSessionForRender(group, identifier string) (*model.Session, error) {
	s, err := e.Resolve(group, identifier)
	if err != nil {
		return nil, err
	}
	if !s.RenderReady {
		return nil, model.NewError(model.KindSessionNotReady, "session has no global parameters set yet", "call set_global_parameters before rendering", nil)
	}
	return s, nil
}

func cloneSession(s *model.Session) *model.Session {
	cp := *s
	cp.GlobalParameters = make(map[string]any, len(s.GlobalParameters))
	for k, v := range s.GlobalParameters {
		cp.GlobalParameters[k] = v
	}
	cp.Fragments = append([]model.FragmentInstance(nil), s.Fragments...)
	return &cp
}
