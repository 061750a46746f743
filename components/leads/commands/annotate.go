package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
)

// AnnotateInput edits remarks. Without an ID the remarks apply to every selected row.
type AnnotateInput struct {
	Collection string `json:"collection"`
	ID         string `json:"id,omitempty"`
	Remark1    string `json:"remarks1"`
	Remark2    string `json:"remarks2"`
}

// AnnotateCommand wraps Table.SetRemarks and Table.ApplyGlobal.
type AnnotateCommand struct {
	tables    tableProvider
	telemetry Telemetry
}

// NewAnnotateCommand creates the command.
func NewAnnotateCommand(tables tableProvider, telemetry Telemetry) *AnnotateCommand {
	return &AnnotateCommand{tables: tables, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[AnnotateInput] = (*AnnotateCommand)(nil)

// Execute edits one row or the current selection.
func (c *AnnotateCommand) Execute(ctx context.Context, msg AnnotateInput) error {
	if c.tables == nil {
		return errors.New("annotate command requires a workspace")
	}
	table, err := c.tables.Table(msg.Collection)
	if err != nil {
		return err
	}
	rows := 1
	if msg.ID == "" {
		rows, err = table.ApplyGlobal(msg.Remark1, msg.Remark2)
	} else {
		err = table.SetRemarks(msg.ID, msg.Remark1, msg.Remark2)
	}
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "leads.command.annotate", map[string]any{
		"collection": msg.Collection,
		"rows":       rows,
		"global":     msg.ID == "",
	})
	return nil
}

// TagInput adds or removes a tag. Without an ID the shared draft is edited.
type TagInput struct {
	Collection string `json:"collection"`
	ID         string `json:"id,omitempty"`
	Text       string `json:"text,omitempty"`
	Remove     bool   `json:"remove,omitempty"`
	Index      int    `json:"index,omitempty"`
}

// TagCommand wraps the table tag operations.
type TagCommand struct {
	tables tableProvider
}

// NewTagCommand creates the command.
func NewTagCommand(tables tableProvider) *TagCommand {
	return &TagCommand{tables: tables}
}

var _ gocommand.Commander[TagInput] = (*TagCommand)(nil)

// Execute adds or removes the tag.
func (c *TagCommand) Execute(_ context.Context, msg TagInput) error {
	if c.tables == nil {
		return errors.New("tag command requires a workspace")
	}
	table, err := c.tables.Table(msg.Collection)
	if err != nil {
		return err
	}
	switch {
	case msg.Remove && msg.ID == "":
		return table.RemoveGlobalTag(msg.Index)
	case msg.Remove:
		return table.RemoveTag(msg.ID, msg.Index)
	case msg.ID == "":
		_, err = table.AddGlobalTag(msg.Text)
	default:
		_, err = table.AddTag(msg.ID, msg.Text)
	}
	return err
}
