package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/chrisrobison/ouija/internal/inference"
	"github.com/chrisrobison/ouija/internal/spirit"
)

// Actions understood by the dispatcher
const (
	ActionAsk     = "ask"
	ActionReset   = "reset"
	ActionList    = "list"
	ActionSwitch  = "switch"
	ActionSearch  = "search"
	ActionProfile = "profile"
	ActionHistory = "history"
)

// DefaultHistory is the number of turns returned when n is absent or invalid.
const DefaultHistory = 20

const (
	contentText = "text/plain; charset=utf-8"
	contentJSON = "application/json"
)

// Params carries the inputs of one action.
type Params struct {
	Q    string
	Name string
	N    int
}

// Result is a rendered action outcome, independent of transport.
type Result struct {
	Status      int
	ContentType string
	Body        string
}

// Dispatcher routes actions to the spirit service and renders the replies.
type Dispatcher struct {
	svc    *spirit.Service
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over svc.
func NewDispatcher(svc *spirit.Service, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{svc: svc, logger: logger}
}

// ParseHistoryN reads the n parameter: default 20, minimum 1, anything
// unparsable falls back to the default.
func ParseHistoryN(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultHistory
	}
	if n < 1 {
		return 1
	}
	return n
}

// Do runs action. Unknown actions produce an empty 200.
func (d *Dispatcher) Do(ctx context.Context, action string, p Params) Result {
	switch action {
	case "", ActionAsk:
		reply, err := d.svc.Ask(ctx, p.Q)
		if err != nil {
			return d.fail(action, err)
		}
		return text(reply)

	case ActionReset:
		rec, err := d.svc.Reset(ctx)
		if err != nil {
			return d.fail(action, err)
		}
		return text(spirit.FormatReset(rec))

	case ActionList:
		records, current, err := d.svc.List(ctx)
		if err != nil {
			return d.fail(action, err)
		}
		return text(spirit.FormatList(records, current))

	case ActionSwitch:
		res, err := d.svc.Switch(ctx, p.Name)
		if err != nil {
			return d.fail(action, err)
		}
		return text(spirit.FormatSwitch(p.Name, res))

	case ActionSearch:
		res, err := d.svc.Search(ctx, p.Name)
		if err != nil {
			return d.fail(action, err)
		}
		return text(spirit.FormatSearch(p.Name, res))

	case ActionProfile:
		profile, err := d.svc.Profile(ctx)
		if err != nil {
			return d.fail(action, err)
		}
		return d.jsonResult(action, profile)

	case ActionHistory:
		n := p.N
		if n == 0 {
			n = DefaultHistory
		}
		turns, err := d.svc.History(ctx, n)
		if err != nil {
			return d.fail(action, err)
		}
		return d.jsonResult(action, turns)

	default:
		return Result{Status: http.StatusOK, ContentType: contentText}
	}
}

func text(body string) Result {
	return Result{Status: http.StatusOK, ContentType: contentText, Body: body}
}

func (d *Dispatcher) jsonResult(action string, v any) Result {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return d.fail(action, err)
	}
	return Result{Status: http.StatusOK, ContentType: contentJSON, Body: string(data)}
}

// fail maps service errors onto replies. Details are logged, never returned.
func (d *Dispatcher) fail(action string, err error) Result {
	var (
		upstreamErr *inference.UpstreamError
		storageErr  *spirit.StorageError
	)
	switch {
	case errors.Is(err, spirit.ErrValidation):
		return text("Please provide a name.")
	case errors.As(err, &upstreamErr):
		d.logger.Error("model call failed", "action", action, "provider", upstreamErr.Provider, "status", upstreamErr.StatusCode, "error", err)
	case errors.As(err, &storageErr):
		d.logger.Error("storage failure", "action", action, "op", storageErr.Op, "id", storageErr.ID, "error", err)
	default:
		d.logger.Error("action failed", "action", action, "error", err)
	}
	return Result{Status: http.StatusInternalServerError, ContentType: contentText, Body: "Error"}
}
