// Package agentdef defines, validates and loads agent definitions.
package agentdef

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/db/models"
	"golang.org/x/text/language"
)

var (
	ErrAgentDef         apperrors.Error = apperrors.New("agent definition error").SetStatusCode(http.StatusBadRequest)
	ErrInvalidAgentDef  apperrors.Error = ErrAgentDef.New("invalid agent definition").SetExpandError(true)
	ErrUnreadableSource apperrors.Error = ErrAgentDef.New("unable to read agent definitions")
	ErrApplyFailed      apperrors.Error = ErrAgentDef.New("unable to save agent").SetStatusCode(http.StatusInternalServerError)
)

// Voices available to agents.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// Languages available to agents, as BCP 47 tags.
var Languages = []language.Tag{
	language.MustParse("en-US"),
	language.MustParse("en-GB"),
	language.MustParse("es-ES"),
	language.MustParse("fr-FR"),
	language.MustParse("de-DE"),
	language.MustParse("it-IT"),
	language.MustParse("pt-BR"),
	language.MustParse("ja-JP"),
	language.MustParse("ko-KR"),
	language.MustParse("zh-CN"),
}

const (
	DefaultIconPosition = "bottom-right"
	DefaultIconSize     = "medium"
	DefaultIconColor    = "#6366f1"
)

type Icon struct {
	Position string `json:"position,omitempty" validate:"omitempty,oneof=bottom-right bottom-left top-right top-left"`
	Size     string `json:"size,omitempty" validate:"omitempty,oneof=small medium large"`
	Color    string `json:"color,omitempty" validate:"omitempty,len=7,hexcolor"`
}

// Definition is an agent as written by its owner.
type Definition struct {
	ID             string `json:"id,omitempty" validate:"omitempty,uuid"`
	Owner          string `json:"owner" validate:"required"`
	Name           string `json:"name" validate:"required,max=100"`
	Voice          string `json:"voice" validate:"required,voice"`
	Language       string `json:"language" validate:"required,supportedLanguage"`
	WelcomeMessage string `json:"welcomeMessage,omitempty" validate:"max=1000"`
	ExitMessage    string `json:"exitMessage,omitempty" validate:"max=1000"`
	Icon           Icon   `json:"icon,omitempty"`
}

// Normalize trims fields, fills in icon defaults and rewrites a
// recognisable language tag in canonical form.
func (d *Definition) Normalize() {
	d.ID = strings.TrimSpace(d.ID)
	d.Owner = strings.TrimSpace(d.Owner)
	d.Name = strings.TrimSpace(d.Name)
	d.Voice = strings.ToLower(strings.TrimSpace(d.Voice))
	d.Language = strings.TrimSpace(d.Language)
	if tag, err := language.Parse(d.Language); err == nil {
		d.Language = tag.String()
	}
	if d.Icon.Position == "" {
		d.Icon.Position = DefaultIconPosition
	}
	if d.Icon.Size == "" {
		d.Icon.Size = DefaultIconSize
	}
	if d.Icon.Color == "" {
		d.Icon.Color = DefaultIconColor
	}
	d.Icon.Color = strings.ToLower(d.Icon.Color)
}

// Validate reports every problem with d, not just the first.
func (d *Definition) Validate() apperrors.Error {
	errs := validationErrors(d)
	if len(errs) == 0 {
		return nil
	}
	return ErrInvalidAgentDef.MsgErr(fmt.Sprintf("invalid agent definition %q", d.Name), errs...)
}

// Model converts d to its stored form. d should be normalized and valid.
func (d *Definition) Model() *models.Agent {
	a := &models.Agent{
		UserID:         d.Owner,
		Name:           d.Name,
		Voice:          d.Voice,
		Language:       d.Language,
		WelcomeMessage: d.WelcomeMessage,
		ExitMessage:    d.ExitMessage,
		IconPosition:   d.Icon.Position,
		IconSize:       d.Icon.Size,
		IconColor:      d.Icon.Color,
	}
	if d.ID != "" {
		a.ID = uuid.MustParse(d.ID)
	}
	return a
}

// FromModel is the inverse of Model.
func FromModel(a *models.Agent) *Definition {
	return &Definition{
		ID:             a.ID.String(),
		Owner:          a.UserID,
		Name:           a.Name,
		Voice:          a.Voice,
		Language:       a.Language,
		WelcomeMessage: a.WelcomeMessage,
		ExitMessage:    a.ExitMessage,
		Icon: Icon{
			Position: a.IconPosition,
			Size:     a.IconSize,
			Color:    a.IconColor,
		},
	}
}

// Apply validates every definition and then upserts them in order. Nothing
// is written if any definition is invalid. Definitions without an id are
// assigned one.
func Apply(ctx context.Context, store db.AgentStore, defs []*Definition) ([]*models.Agent, apperrors.Error) {
	for _, d := range defs {
		d.Normalize()
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	agents := make([]*models.Agent, 0, len(defs))
	for _, d := range defs {
		a := d.Model()
		if err := store.UpsertAgent(ctx, a); err != nil {
			return agents, ErrApplyFailed.MsgErr(fmt.Sprintf("unable to save agent %q", d.Name), err)
		}
		d.ID = a.ID.String()
		agents = append(agents, a)
	}
	return agents, nil
}
