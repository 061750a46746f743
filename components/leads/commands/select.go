package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
)

// SelectMode is the selection change applied to IDs.
type SelectMode string

const (
	SelectToggle   SelectMode = "toggle"
	SelectOn       SelectMode = "select"
	SelectOff      SelectMode = "deselect"
	SelectAllRows  SelectMode = "all"
	SelectNoneRows SelectMode = "none"
)

// SelectRowsInput changes the selection of a collection table.
type SelectRowsInput struct {
	Collection string     `json:"collection"`
	IDs        []string   `json:"ids,omitempty"`
	Mode       SelectMode `json:"mode"`
}

type tableProvider interface {
	Table(name string) (*leads.Table, error)
}

// SelectRowsCommand updates table selection.
type SelectRowsCommand struct {
	tables tableProvider
}

// NewSelectRowsCommand creates the command.
func NewSelectRowsCommand(tables tableProvider) *SelectRowsCommand {
	return &SelectRowsCommand{tables: tables}
}

var _ gocommand.Commander[SelectRowsInput] = (*SelectRowsCommand)(nil)

// Execute applies the selection mode. Every id is validated before any is changed.
func (c *SelectRowsCommand) Execute(_ context.Context, msg SelectRowsInput) error {
	if c.tables == nil {
		return errors.New("select command requires a workspace")
	}
	table, err := c.tables.Table(msg.Collection)
	if err != nil {
		return err
	}
	switch msg.Mode {
	case SelectAllRows:
		table.SelectAll()
		return nil
	case SelectNoneRows:
		table.ClearSelection()
		return nil
	case "", SelectToggle, SelectOn, SelectOff:
	default:
		return leads.NewValidationError(fmt.Sprintf("unknown selection mode %q", msg.Mode))
	}
	if len(msg.IDs) == 0 {
		return leads.NewValidationError("row ids are required")
	}
	for _, id := range msg.IDs {
		if _, ok := table.Row(id); !ok {
			return leads.NewValidationError(fmt.Sprintf("row %q is not in this table", id))
		}
	}
	for _, id := range msg.IDs {
		switch msg.Mode {
		case SelectOn:
			err = table.SetSelected(id, true)
		case SelectOff:
			err = table.SetSelected(id, false)
		default:
			_, err = table.ToggleSelect(id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
