package messagedata

import (
	"fmt"
	"strings"
	"time"

	"github.com/laonet/laocoord/lib/common"
)

func formatUnix(t int64) string {
	return common.FormatISO8601(time.Unix(t, 0).UTC())
}

type CreateMeeting struct {
	Object   string `json:"object"`
	Action   string `json:"action"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Creation int64  `json:"creation"`
	Location string `json:"location,omitempty"`
	Start    int64  `json:"start"`
	End      int64  `json:"end,omitempty"`
}

func (CreateMeeting) GetObject() string { return MeetingObject }
func (CreateMeeting) GetAction() string { return CreateAction }

func (m CreateMeeting) Verify() error {
	switch {
	case !common.IsBase64(m.ID):
		return invalid("id", "should be base64url encoded")
	case len(m.Name) < 1:
		return invalid("name", "empty")
	case m.Creation < 0:
		return invalid("creation", "should be minimum 0")
	case m.Start < m.Creation:
		return invalid("start", "should be after creation")
	case m.End != 0 && m.End < m.Start:
		return invalid("end", "should be after start")
	}

	return nil
}

func (m CreateMeeting) Title() string {
	return "New Meeting was created"
}

func (m CreateMeeting) Description() string {
	lines := []string{
		fmt.Sprintf("Name : %s", m.Name),
		fmt.Sprintf("Message ID : %s", m.ID),
	}
	if len(m.Location) > 0 {
		lines = append(lines, fmt.Sprintf("Location : %s", m.Location))
	}
	lines = append(lines, fmt.Sprintf("Starts at : %s", formatUnix(m.Start)))
	if m.End != 0 {
		lines = append(lines, fmt.Sprintf("Finishes at : %s", formatUnix(m.End)))
	}

	return strings.Join(lines, "\n")
}

type CreateRollCall struct {
	Object        string `json:"object"`
	Action        string `json:"action"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	Creation      int64  `json:"creation"`
	ProposedStart int64  `json:"proposed_start"`
	ProposedEnd   int64  `json:"proposed_end"`
	Location      string `json:"location"`
	Note          string `json:"description,omitempty"`
}

func (CreateRollCall) GetObject() string { return RollCallObject }
func (CreateRollCall) GetAction() string { return CreateAction }

func (r CreateRollCall) Verify() error {
	switch {
	case !common.IsBase64(r.ID):
		return invalid("id", "should be base64url encoded")
	case len(r.Name) < 1:
		return invalid("name", "empty")
	case r.Creation < 0:
		return invalid("creation", "should be minimum 0")
	case r.ProposedStart < r.Creation:
		return invalid("proposed_start", "should be after creation")
	case r.ProposedEnd < r.ProposedStart:
		return invalid("proposed_end", "should be after proposed_start")
	}

	return nil
}

func (r CreateRollCall) Title() string {
	return "New Roll-Call was created"
}

func (r CreateRollCall) Description() string {
	lines := []string{
		fmt.Sprintf("Name : %s", r.Name),
		fmt.Sprintf("Message ID : %s", r.ID),
		fmt.Sprintf("Location : %s", r.Location),
		fmt.Sprintf("Starts at : %s", formatUnix(r.ProposedStart)),
		fmt.Sprintf("Finishes at : %s", formatUnix(r.ProposedEnd)),
	}
	if len(r.Note) > 0 {
		lines = append(lines, fmt.Sprintf("Description : %s", r.Note))
	}

	return strings.Join(lines, "\n")
}

type UpdateLaoProperties struct {
	Object       string   `json:"object"`
	Action       string   `json:"action"`
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	LastModified int64    `json:"last_modified"`
	Witnesses    []string `json:"witnesses"`
}

func (UpdateLaoProperties) GetObject() string { return LaoObject }
func (UpdateLaoProperties) GetAction() string { return UpdatePropertiesAction }

func (u UpdateLaoProperties) Verify() error {
	switch {
	case !common.IsBase64(u.ID):
		return invalid("id", "should be base64url encoded")
	case len(u.Name) < 1:
		return invalid("name", "empty")
	case u.LastModified < 0:
		return invalid("last_modified", "should be minimum 0")
	}

	return nil
}

func (u UpdateLaoProperties) Title() string {
	return "Update Lao Properties"
}

func (u UpdateLaoProperties) Description() string {
	return fmt.Sprintf(
		"Lao Name : %s\nMessage ID : %s\nWitnesses : %s",
		u.Name,
		u.ID,
		strings.Join(u.Witnesses, ", "),
	)
}
