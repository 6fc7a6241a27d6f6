package groupbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/projecthub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrInvalidUserID is returned when a user id is not a GUID. The portal
// API rejects such ids with an opaque 400, so they are refused up front.
var ErrInvalidUserID = errors.New("groupbackend: user id must be a GUID")

// StatusError is a non-transport HTTP failure from the portal API.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("groupbackend %s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Remote talks to the portal's REST API.
type Remote struct {
	base     string
	client   *http.Client
	token    string
	pageSize int
	checkIDs bool
	log      *zap.Logger
}

// RemoteOption configures Remote.
type RemoteOption func(*Remote)

// WithHTTPClient sets the HTTP client (default: 10s timeout). When a
// bearer token is also set, the client's transport is wrapped.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		r.client = c
	}
}

// WithBearerToken authenticates every request with a static token.
func WithBearerToken(token string) RemoteOption {
	return func(r *Remote) {
		r.token = token
	}
}

// WithPageSize sets the page size for paged listings (default 100).
func WithPageSize(n int) RemoteOption {
	return func(r *Remote) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithoutIDValidation accepts user ids that are not GUIDs. Useful against
// development servers seeded with readable ids.
func WithoutIDValidation() RemoteOption {
	return func(r *Remote) {
		r.checkIDs = false
	}
}

// WithLogger sets the logger used for paging diagnostics.
func WithLogger(l *zap.Logger) RemoteOption {
	return func(r *Remote) {
		r.log = l
	}
}

// NewRemote returns a Remote backend rooted at baseURL (for example
// "https://portal.example.edu"). The "/api" prefix is added per call.
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		base:     strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		pageSize: 100,
		checkIDs: true,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, r.client)
		authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: r.token, TokenType: "Bearer"}))
		authed.Timeout = r.client.Timeout
		r.client = authed
	}
	return r
}

func (r *Remote) validUserID(id string) error {
	if !r.checkIDs {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	}
	return nil
}

// do sends a request and decodes a JSON response into out (if non-nil).
// A 404 maps to ErrNotFound and a 409 to conflict when it is non-nil.
func (r *Remote) do(ctx context.Context, op, method, path string, body, out any, conflict error) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict && conflict != nil:
		return conflict
	case transportStatus(resp.StatusCode):
		return &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if IsTransport(err) {
			return &TransportError{Op: op, Err: err}
		}
		return fmt.Errorf("groupbackend %s: decode: %w", op, err)
	}
	return nil
}

func normalizeGroup(w wireGroup) models.Group {
	g := w.toModel()
	if g.MaxMembers <= 0 {
		g.MaxMembers = models.DefaultMaxMembers
	}
	return g
}

func (r *Remote) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	if g.Status == "" {
		g.Status = models.GroupOpen
	}
	if g.MaxMembers <= 0 {
		g.MaxMembers = models.DefaultMaxMembers
	}
	body := map[string]any{
		"name":       g.Name,
		"courseId":   g.CourseID,
		"maxMembers": g.MaxMembers,
		"status":     g.Status,
	}
	var w wireGroup
	if err := r.do(ctx, "create group", http.MethodPost, "/api/Group/CreateGroup", body, &w, ErrDuplicateName); err != nil {
		return models.Group{}, err
	}
	created := normalizeGroup(w)
	if created.ID == "" {
		return models.Group{}, fmt.Errorf("groupbackend create group: response carried no id")
	}
	if created.Name == "" {
		created.Name = g.Name
	}
	if created.CourseID == "" {
		created.CourseID = g.CourseID
	}
	created.MemberCount = 0
	return created, nil
}

func (r *Remote) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var w wireGroup
	if err := r.do(ctx, "get group", http.MethodGet, "/api/Group/GetGroupBy/"+url.PathEscape(groupID), nil, &w, nil); err != nil {
		return models.Group{}, err
	}
	return normalizeGroup(w), nil
}

// ListGroupsByCourse filters the full listing client-side; the API has no
// course-scoped endpoint.
func (r *Remote) ListGroupsByCourse(ctx context.Context, courseID string) ([]models.Group, error) {
	var ws []wireGroup
	if err := r.do(ctx, "list groups", http.MethodGet, "/api/Group/GetAllGroups", nil, &ws, nil); err != nil {
		return nil, err
	}
	var out []models.Group
	for _, w := range ws {
		g := normalizeGroup(w)
		if g.CourseID == courseID {
			out = append(out, g)
		}
	}
	sortGroups(out)
	return out, nil
}

// ListGroupsByMember returns the groups of userID. The endpoint answers
// with an array, and with 404 when the user has no group.
func (r *Remote) ListGroupsByMember(ctx context.Context, userID string) ([]models.Group, error) {
	if err := r.validUserID(userID); err != nil {
		return nil, err
	}
	var ws []wireGroup
	err := r.do(ctx, "groups by member", http.MethodGet, "/api/Group/GetGroupByStudentID/"+url.PathEscape(userID), nil, &ws, nil)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.Group, 0, len(ws))
	for _, w := range ws {
		out = append(out, normalizeGroup(w))
	}
	sortGroups(out)
	return out, nil
}

// UpdateGroup applies u. A lecturer assignment has its own route; the
// remaining fields go in one UpdateGroupBy PUT, which the API rejects
// unless it carries the group's name and course, so those are read from
// the current group when u leaves them unset.
func (r *Remote) UpdateGroup(ctx context.Context, groupID string, u models.GroupUpdate) error {
	if u.IsZero() {
		return nil
	}
	if u.LecturerID != nil && *u.LecturerID != "" {
		q := url.Values{"lecturerId": {*u.LecturerID}}
		path := "/api/Group/UpdateLecturer" + url.PathEscape(groupID) + "?" + q.Encode()
		if err := r.do(ctx, "update lecturer", http.MethodPut, path, nil, nil, nil); err != nil {
			return err
		}
		u.LecturerID = nil
		if u.IsZero() {
			return nil
		}
	}

	var cur models.Group
	if u.Name == nil || u.CourseID == nil {
		g, err := r.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		cur = g
	}
	return r.do(ctx, "update group", http.MethodPut, "/api/Group/UpdateGroupBy/"+url.PathEscape(groupID), updateBody(cur, u), nil, ErrDuplicateName)
}

// ListMembers reads the GroupMember listing. Deployments without that
// listing answer 404; the member list embedded in the group payload is
// used instead, with the leader taken from the group's pointer.
func (r *Remote) ListMembers(ctx context.Context, groupID string) ([]models.GroupMembership, error) {
	var ws []wireMember
	q := url.Values{"groupId": {groupID}}
	err := r.do(ctx, "list members", http.MethodGet, "/api/GroupMember?"+q.Encode(), nil, &ws, nil)
	if errors.Is(err, ErrNotFound) {
		return r.embeddedMembers(ctx, groupID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.GroupMembership, 0, len(ws))
	for _, w := range ws {
		m := w.toModel(groupID, "")
		if m.GroupID != groupID || m.UserID == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Remote) embeddedMembers(ctx context.Context, groupID string) ([]models.GroupMembership, error) {
	var w wireGroup
	if err := r.do(ctx, "get group", http.MethodGet, "/api/Group/GetGroupBy/"+url.PathEscape(groupID), nil, &w, nil); err != nil {
		return nil, err
	}
	g := normalizeGroup(w)
	ws := w.embeddedMembers()
	out := make([]models.GroupMembership, 0, len(ws))
	for _, wm := range ws {
		m := wm.toModel(g.ID, g.CourseID)
		if m.UserID == "" {
			continue
		}
		if g.LeaderID != "" {
			m.Role = models.RoleMember
			if m.UserID == g.LeaderID {
				m.Role = models.RoleLeader
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Remote) AddMember(ctx context.Context, m models.GroupMembership) error {
	if err := r.validUserID(m.UserID); err != nil {
		return err
	}
	role := m.Role
	if role == "" {
		role = models.RoleMember
	}
	body := map[string]any{
		"groupId":     m.GroupID,
		"userId":      m.UserID,
		"roleInGroup": role,
	}
	return r.do(ctx, "add member", http.MethodPost, "/api/GroupMember", body, nil, ErrDuplicateMember)
}

func (r *Remote) RemoveMember(ctx context.Context, groupID, userID string) error {
	q := url.Values{"groupId": {groupID}}
	return r.do(ctx, "remove member", http.MethodDelete, "/api/GroupMember/"+url.PathEscape(userID)+"?"+q.Encode(), nil, nil, nil)
}

func (r *Remote) SetMemberRole(ctx context.Context, groupID, userID, role string) error {
	q := url.Values{"groupId": {groupID}}
	body := map[string]string{"roleInGroup": role}
	return r.do(ctx, "set role", http.MethodPut, "/api/GroupMember/"+url.PathEscape(userID)+"/role?"+q.Encode(), body, nil, nil)
}

// Ping fetches a single page of the course listing.
func (r *Remote) Ping(ctx context.Context) error {
	return r.do(ctx, "ping", http.MethodGet, "/api/Course?pageNumber=1&pageSize=1", nil, nil, nil)
}

func (r *Remote) GetCourse(ctx context.Context, courseID string) (models.Course, error) {
	var w wireCourse
	if err := r.do(ctx, "get course", http.MethodGet, "/api/Course/"+url.PathEscape(courseID), nil, &w, nil); err != nil {
		return models.Course{}, err
	}
	return w.toModel(), nil
}

func (r *Remote) ListActiveCourses(ctx context.Context) ([]models.Course, error) {
	ws, err := fetchAllPages[wireCourse](ctx, r, "list courses", "/api/Course", url.Values{})
	if err != nil {
		return nil, err
	}
	var out []models.Course
	for _, w := range ws {
		if c := w.toModel(); c.IsActive() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Remote) ListStudents(ctx context.Context, courseID string) ([]models.Student, error) {
	ws, err := fetchAllPages[wireStudent](ctx, r, "list students", "/api/User", url.Values{"courseId": {courseID}, "role": {"Student"}})
	if err != nil {
		return nil, err
	}
	return toStudents(ws, courseID), nil
}

// ListStudentsWithoutGroup uses the API's dedicated listing instead of
// diffing enrollments against memberships.
func (r *Remote) ListStudentsWithoutGroup(ctx context.Context, courseID string) ([]models.Student, error) {
	ws, err := fetchAllPages[wireStudent](ctx, r, "students without group", "/api/User/UserWithoutGroup", url.Values{"courseId": {courseID}})
	if err != nil {
		return nil, err
	}
	return toStudents(ws, courseID), nil
}

func toStudents(ws []wireStudent, courseID string) []models.Student {
	out := make([]models.Student, 0, len(ws))
	for _, w := range ws {
		if s := w.toModel(courseID); s.UserID != "" {
			out = append(out, s)
		}
	}
	sortStudents(out)
	return out
}

// fetchAllPages walks a paged listing ({items, totalPages}). Endpoints
// that answer with a bare array are accepted as a single page.
func fetchAllPages[T any](ctx context.Context, r *Remote, op, path string, q url.Values) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q.Set("pageNumber", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(r.pageSize))

		var raw json.RawMessage
		if err := r.do(ctx, op, http.MethodGet, path+"?"+q.Encode(), nil, &raw, nil); err != nil {
			return nil, err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []T
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, fmt.Errorf("groupbackend %s: decode: %w", op, err)
			}
			return append(all, items...), nil
		}

		var p wirePage[T]
		if len(trimmed) > 0 {
			if err := json.Unmarshal(trimmed, &p); err != nil {
				return nil, fmt.Errorf("groupbackend %s: decode: %w", op, err)
			}
		}
		all = append(all, p.Items...)
		if page >= p.TotalPages || len(p.Items) == 0 {
			r.log.Debug("paged listing complete",
				zap.String("op", op), zap.Int("pages", page), zap.Int("items", len(all)))
			return all, nil
		}
	}
}
