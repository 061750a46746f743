package leads

import (
	"context"
	"fmt"
	"strings"
)

// PatchVariant selects the bulk PATCH body shape. The backend exposes both shapes on
// different endpoints, so the table is told which one it talks to.
type PatchVariant string

const (
	// PatchShared sends {ids, updateData} with one payload applied to every id.
	PatchShared PatchVariant = "shared"
	// PatchPerRow sends {updates:[{_id, remarks1, remarks2, tags}]}.
	PatchPerRow PatchVariant = "per_row"
)

// ParsePatchVariant accepts the config spellings of a variant.
func ParsePatchVariant(v string) (PatchVariant, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "shared", "ids":
		return PatchShared, nil
	case "per_row", "per-row", "updates":
		return PatchPerRow, nil
	default:
		return "", fmt.Errorf("leads: unknown patch variant %q", v)
	}
}

// UpdateData is the annotation payload the backend stores on a row.
type UpdateData struct {
	Remarks1 string `json:"remarks1"`
	Remarks2 string `json:"remarks2"`
	Tags     []Tag  `json:"tags"`
}

// SharedPatch is the {ids, updateData} body.
type SharedPatch struct {
	IDs        []string   `json:"ids"`
	UpdateData UpdateData `json:"updateData"`
}

// RowUpdate is one element of the per-row body.
type RowUpdate struct {
	ID       string `json:"_id"`
	Remarks1 string `json:"remarks1"`
	Remarks2 string `json:"remarks2"`
	Tags     []Tag  `json:"tags"`
}

// PerRowPatch is the {updates:[...]} body.
type PerRowPatch struct {
	Updates []RowUpdate `json:"updates"`
}

// MutationResponse is the decoded body of a PATCH/POST/DELETE call. Success is nil when the
// server did not send the flag.
type MutationResponse struct {
	Status  int
	Success *bool
	Message string
}

// Patcher issues the single bulk PATCH request.
type Patcher interface {
	Patch(ctx context.Context, endpoint string, payload any) (MutationResponse, error)
}

// PatcherFunc adapts a function into a Patcher.
type PatcherFunc func(ctx context.Context, endpoint string, payload any) (MutationResponse, error)

func (f PatcherFunc) Patch(ctx context.Context, endpoint string, payload any) (MutationResponse, error) {
	return f(ctx, endpoint, payload)
}

// SubmitResult summarizes an accepted bulk submit.
type SubmitResult struct {
	Endpoint string       `json:"endpoint"`
	Variant  PatchVariant `json:"variant"`
	IDs      []string     `json:"ids"`
	Message  string       `json:"message,omitempty"`
	// ReloadError is set when the PATCH was accepted but the follow-up reload failed.
	ReloadError string `json:"reload_error,omitempty"`
}

func sharedPayload(ids []string, draft Annotation) SharedPatch {
	tags := draft.Tags
	if tags == nil {
		tags = []Tag{}
	}
	return SharedPatch{
		IDs: ids,
		UpdateData: UpdateData{
			Remarks1: draft.Remark1,
			Remarks2: draft.Remark2,
			Tags:     tags,
		},
	}
}

func perRowPayload(ids []string, annotations map[string]Annotation) PerRowPatch {
	updates := make([]RowUpdate, 0, len(ids))
	for _, id := range ids {
		ann := annotations[id]
		tags := ann.Tags
		if tags == nil {
			tags = []Tag{}
		}
		updates = append(updates, RowUpdate{
			ID:       id,
			Remarks1: ann.Remark1,
			Remarks2: ann.Remark2,
			Tags:     tags,
		})
	}
	return PerRowPatch{Updates: updates}
}

// checkMutation applies the success-indicator rules shared by bulk submits and entity mutations.
func checkMutation(op string, resp MutationResponse, requireFlag bool) error {
	if resp.Status != 0 && (resp.Status < 200 || resp.Status >= 300) {
		return NewServerError(op, resp.Status, resp.Message)
	}
	if resp.Success != nil && !*resp.Success {
		return NewServerError(op, resp.Status, resp.Message)
	}
	if requireFlag && resp.Success == nil {
		return NewServerError(op, resp.Status, fmt.Sprintf("failed to %s: response missing success flag", op))
	}
	return nil
}
