package adminserver

import (
	"bufio"
	"errors"
	"io"

	"github.com/yndnr/hostgate/internal/core/domain"
	"github.com/yndnr/hostgate/internal/core/routing"
	"github.com/yndnr/hostgate/internal/server/config"
	"github.com/yndnr/hostgate/internal/telemetry/logger"
	"github.com/yndnr/hostgate/internal/telemetry/metric"
)

// Controller is the live state the console operates on.
type Controller interface {
	Routes(scheme domain.Scheme) []routing.Entry
	Reconfig() (config.LoadResult, error)
	// Reroute returns ErrUnknownHost when host has no route for scheme.
	Reroute(scheme domain.Scheme, host string) error
	RefreshTLS() error
	Uncache(id string) ([]string, error)
}

// Handler executes console commands against a Controller.
type Handler struct {
	ctrl    Controller
	logger  logger.Logger
	metrics *metric.Registry
}

// NewHandler creates a Handler.
func NewHandler(ctrl Controller, l logger.Logger, m *metric.Registry) *Handler {
	return &Handler{ctrl: ctrl, logger: logger.OrDefault(l), metrics: m}
}

// Execute runs cmd and writes its reply lines to w. It reports whether the
// session should end.
func (h *Handler) Execute(w io.Writer, cmd Command) (quit bool, err error) {
	bw := bufio.NewWriter(w)
	defer func() {
		if ferr := bw.Flush(); err == nil {
			err = ferr
		}
	}()

	label := cmd.Name
	if _, known := helpTopics[cmd.Name]; !known {
		label = "unrecognized"
	}
	h.metrics.RecordAdminCommand(label)
	h.logger.Info("admin command", "command", cmd.Name, "params", cmd.Params)

	switch cmd.Name {
	case "help":
		writeLines(bw, Help(cmd.Params, cmd.HasParams)...)
		writeLines(bw, ReplyDone)
	case "list":
		h.list(bw, domain.Plain)
	case "slist":
		h.list(bw, domain.Secure)
	case "reconfig":
		h.reconfig(bw)
	case "reroute":
		h.reroute(bw, domain.Plain, cmd.Params)
	case "sreroute":
		h.reroute(bw, domain.Secure, cmd.Params)
	case "ressl":
		h.ressl(bw)
	case "uncache":
		h.uncache(bw, cmd)
	case "quit":
		writeLines(bw, ReplyBye)
		return true, nil
	default:
		writeLines(bw, Unrecognized(cmd.Name))
	}
	return false, nil
}

func (h *Handler) list(w *bufio.Writer, scheme domain.Scheme) {
	for _, e := range h.ctrl.Routes(scheme) {
		writeLines(w, e.Host+": "+string(e.Target))
	}
	writeLines(w, ReplyDone)
}

func (h *Handler) reconfig(w *bufio.Writer) {
	result, err := h.ctrl.Reconfig()
	switch {
	case result == config.NotApplied:
		writeLines(w, WarningPrefix+"configuration rejected, previous configuration kept: "+errText(err))
	case result == config.Defaulted && err != nil:
		writeLines(w, WarningPrefix+"configuration file missing, defaults in effect but not saved: "+errText(err))
	case result == config.Defaulted:
		writeLines(w, WarningPrefix+"configuration file missing, defaults written")
	}
	writeLines(w, ReplyDone)
}

func (h *Handler) reroute(w *bufio.Writer, scheme domain.Scheme, host string) {
	err := h.ctrl.Reroute(scheme, host)
	switch {
	case err == nil:
		writeLines(w, ReplyDone)
	case errors.Is(err, domain.ErrUnknownHost):
		writeLines(w, ReplyUnknownHost)
	default:
		h.logger.Error("reroute failed", "scheme", scheme.String(), "host", host, "error", err)
		writeLines(w, ReplyFailed)
	}
}

func (h *Handler) ressl(w *bufio.Writer) {
	if err := h.ctrl.RefreshTLS(); err != nil {
		h.logger.Warn("tls refresh failed", "error", err)
		writeLines(w, ReplyFailed)
		return
	}
	writeLines(w, ReplyDone)
}

func (h *Handler) uncache(w *bufio.Writer, cmd Command) {
	if !cmd.HasParams || cmd.Params == "" {
		writeLines(w, ReplyFailed)
		return
	}
	removed, err := h.ctrl.Uncache(cmd.Params)
	if err != nil && !errors.Is(err, domain.ErrNothingToEvict) {
		h.logger.Warn("uncache failed", "id", cmd.Params, "error", err)
		writeLines(w, ReplyFailed)
		return
	}
	for _, id := range removed {
		writeLines(w, RemovingPrefix+id)
	}
	writeLines(w, ReplyDone)
}

func writeLines(w *bufio.Writer, lines ...string) {
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
