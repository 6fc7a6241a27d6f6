package groupbackend

import (
	"strings"
	"time"

	"github.com/dalemusser/projecthub/internal/domain/models"
)

// The portal API names the same field several ways depending on the
// endpoint and its version. Everything is decoded into these wire shapes
// and normalized once; nothing outside this file sees an alias.

type wireRef struct {
	ID string `json:"id"`
}

type wireGroup struct {
	ID         string   `json:"id"`
	GroupID    string   `json:"groupId"`
	Name       string   `json:"name"`
	GroupName  string   `json:"groupName"`
	CourseID   string   `json:"courseId"`
	Course     *wireRef `json:"course"`
	MaxMembers int      `json:"maxMembers"`
	Status     string   `json:"status"`
	IsReady    bool     `json:"isReady"`
	LeaderID   string   `json:"leaderId"`
	Leader     *wireRef `json:"leader"`
	TopicID    string   `json:"topicId"`
	Topic      *wireRef `json:"topic"`
	LecturerID string   `json:"lecturerId"`
	Lecturer   *wireRef `json:"lecturer"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`

	Members      []wireMember `json:"members"`
	GroupMembers []wireMember `json:"groupMembers"`
}

type wireMember struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	StudentID   string   `json:"studentId"`
	GroupID     string   `json:"groupId"`
	CourseID    string   `json:"courseId"`
	RoleInGroup string   `json:"roleInGroup"`
	Role        string   `json:"role"`
	IsLeader    bool     `json:"isLeader"`
	User        *wireRef `json:"user"`
	Student     *wireRef `json:"student"`
	JoinedAt    string   `json:"joinedAt"`
	CreatedAt   string   `json:"createdAt"`
}

type wireCourse struct {
	ID         string `json:"id"`
	CourseID   string `json:"courseId"`
	Code       string `json:"code"`
	CourseCode string `json:"courseCode"`
	Name       string `json:"name"`
	CourseName string `json:"courseName"`
	MaxMembers int    `json:"maxMembers"`
	Status     string `json:"status"`
	IsActive   *bool  `json:"isActive"`
}

type wireStudent struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	StudentID string `json:"studentId"`
	CourseID  string `json:"courseId"`
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

type wirePage[T any] struct {
	Items      []T `json:"items"`
	TotalPages int `json:"totalPages"`
	TotalCount int `json:"totalCount"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func refID(r *wireRef) string {
	if r == nil {
		return ""
	}
	return r.ID
}

func parseTime(vals ...string) time.Time {
	for _, v := range vals {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.9999999", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// normalizeStatus maps the API's status spellings onto open/finalize.
func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "finalize", "finalized", "locked", "closed":
		return models.GroupFinalize
	default:
		return models.GroupOpen
	}
}

// normalizeRole maps "Leader", "Group Leader", "leader" and the isLeader
// flag onto RoleLeader; anything else is a plain member.
func normalizeRole(m wireMember) string {
	if m.IsLeader {
		return models.RoleLeader
	}
	for _, r := range []string{m.RoleInGroup, m.Role} {
		switch strings.ToLower(strings.TrimSpace(r)) {
		case "leader", "group leader", "groupleader":
			return models.RoleLeader
		}
	}
	return models.RoleMember
}

func (w wireGroup) toModel() models.Group {
	return models.Group{
		ID:         firstNonEmpty(w.ID, w.GroupID),
		CourseID:   firstNonEmpty(w.CourseID, refID(w.Course)),
		Name:       firstNonEmpty(w.Name, w.GroupName),
		MaxMembers: w.MaxMembers,
		Status:     normalizeStatus(w.Status),
		IsReady:    w.IsReady,
		LeaderID:   firstNonEmpty(w.LeaderID, refID(w.Leader)),
		TopicID:    firstNonEmpty(w.TopicID, refID(w.Topic)),
		LecturerID: firstNonEmpty(w.LecturerID, refID(w.Lecturer)),
		CreatedAt:  parseTime(w.CreatedAt),
		UpdatedAt:  parseTime(w.UpdatedAt, w.CreatedAt),
	}
}

// embeddedMembers returns the member list carried on a group payload,
// if any.
func (w wireGroup) embeddedMembers() []wireMember {
	if len(w.GroupMembers) > 0 {
		return w.GroupMembers
	}
	return w.Members
}

// toModel normalizes a membership. A bare "id" is only taken as the user
// id when no explicit user reference is present.
func (w wireMember) toModel(groupID, courseID string) models.GroupMembership {
	userID := firstNonEmpty(w.UserID, w.StudentID, refID(w.User), refID(w.Student))
	membershipID := ""
	if userID == "" {
		userID = w.ID
	} else {
		membershipID = w.ID
	}
	return models.GroupMembership{
		ID:       membershipID,
		GroupID:  firstNonEmpty(w.GroupID, groupID),
		CourseID: firstNonEmpty(w.CourseID, courseID),
		UserID:   userID,
		Role:     normalizeRole(w),
		JoinedAt: parseTime(w.JoinedAt, w.CreatedAt),
	}
}

func (w wireCourse) toModel() models.Course {
	status := models.CourseActive
	if strings.EqualFold(w.Status, models.CourseInactive) || (w.IsActive != nil && !*w.IsActive) {
		status = models.CourseInactive
	}
	return models.Course{
		ID:         firstNonEmpty(w.ID, w.CourseID),
		Code:       firstNonEmpty(w.Code, w.CourseCode),
		Name:       firstNonEmpty(w.Name, w.CourseName),
		MaxMembers: w.MaxMembers,
		Status:     status,
	}
}

func (w wireStudent) toModel(courseID string) models.Student {
	name := firstNonEmpty(w.FullName, strings.TrimSpace(w.FirstName+" "+w.LastName), w.Username, w.Email)
	return models.Student{
		UserID:   firstNonEmpty(w.UserID, w.StudentID, w.ID),
		CourseID: firstNonEmpty(w.CourseID, courseID),
		FullName: name,
		Email:    w.Email,
	}
}

// updateBody builds the UpdateGroupBy body. Name and course always
// travel, falling back to cur; other fields are sent only when set, and a
// cleared reference is sent as null since the API types them as Guid?.
func updateBody(cur models.Group, u models.GroupUpdate) map[string]any {
	body := map[string]any{
		"name":     cur.Name,
		"courseId": cur.CourseID,
	}
	if u.Name != nil {
		body["name"] = *u.Name
	}
	if u.CourseID != nil {
		body["courseId"] = *u.CourseID
	}
	if u.MaxMembers != nil {
		body["maxMembers"] = *u.MaxMembers
	}
	if u.Status != nil {
		body["status"] = *u.Status
	}
	if u.IsReady != nil {
		body["isReady"] = *u.IsReady
	}
	setRef(body, "leaderId", u.LeaderID)
	setRef(body, "topicId", u.TopicID)
	setRef(body, "lecturerId", u.LecturerID)
	return body
}

func setRef(body map[string]any, key string, v *string) {
	switch {
	case v == nil:
	case *v == "":
		body[key] = nil
	default:
		body[key] = *v
	}
}
