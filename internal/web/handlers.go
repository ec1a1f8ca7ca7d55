package web

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"yarukoto/internal/command"
	"yarukoto/internal/query"
	"yarukoto/internal/reminder"
	"yarukoto/internal/todo"
)

// itemView is an item plus the fields derived for display.
type itemView struct {
	todo.Item
	TagsList          []string          `json:"tags_list"`
	EffectiveReminder *time.Time        `json:"effective_reminder"`
	DueState          reminder.DueState `json:"due_state,omitempty"`
}

func newItemView(it todo.Item, now time.Time) itemView {
	v := itemView{
		Item:     it,
		TagsList: it.TagList(),
		DueState: reminder.Classify(it, now),
	}
	if v.TagsList == nil {
		v.TagsList = []string{}
	}
	if at, ok := it.EffectiveReminder(); ok {
		v.EffectiveReminder = &at
	}
	return v
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if err := s.deps.Store.Ping(c.UserContext()); err != nil {
		requestLogger(c, s.log).WithError(err).Warn("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).SendString("UNAVAILABLE")
	}
	return c.SendString("OK")
}

func (s *Server) handleList(c *fiber.Ctx) error {
	p := query.Params{
		Q:        c.Query("q"),
		Priority: c.Query("priority"),
		Tag:      c.Query("tag"),
		Sort:     query.ParseSort(c.Query("sort")),
	}
	items, err := s.deps.Lister.List(c.UserContext(), p)
	if err != nil {
		requestLogger(c, s.log).WithError(err).Error("list todos")
		return FiberJsonResponse(c, fiber.StatusInternalServerError, "error", "Could not load your to-dos.", nil)
	}

	now := s.deps.Now()
	views := make([]itemView, 0, len(items))
	for _, it := range items {
		views = append(views, newItemView(it, now))
	}
	return FiberJsonResponse(c, fiber.StatusOK, "success", "", fiber.Map{
		"items":  views,
		"params": p.Normalize(),
	})
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return FiberJsonResponse(c, fiber.StatusBadRequest, "error", "id must be a positive integer", nil)
	}
	it, err := s.deps.Store.Get(c.UserContext(), id)
	if errors.Is(err, todo.ErrNotFound) {
		return FiberJsonResponse(c, fiber.StatusNotFound, "error", command.UserMessage(err), nil)
	}
	if err != nil {
		requestLogger(c, s.log).WithError(err).Error("get todo")
		return FiberJsonResponse(c, fiber.StatusInternalServerError, "error", "Could not load the to-do.", nil)
	}
	return FiberJsonResponse(c, fiber.StatusOK, "success", "", newItemView(it, s.deps.Now()))
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	form, err := parseForm(c)
	if err != nil {
		return FiberJsonResponse(c, fiber.StatusBadRequest, "error", "Malformed request body.", nil)
	}

	res := s.deps.Commands.Dispatch(c.UserContext(), form)
	if !res.OK() {
		return FiberJsonResponse(c, statusFor(res.Err), "error", res.Message, res)
	}
	code := fiber.StatusOK
	if res.Action == command.ActionCreate {
		code = fiber.StatusCreated
	}
	return FiberJsonResponse(c, code, "success", res.Message, res)
}

func statusFor(err error) int {
	switch {
	case todo.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, todo.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// parseForm reads a urlencoded body or a flat JSON object. JSON null
// counts as a present, empty value.
func parseForm(c *fiber.Ctx) (command.Form, error) {
	form := command.Form{}
	if c.Is("json") {
		dec := json.NewDecoder(strings.NewReader(string(c.Body())))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			switch x := v.(type) {
			case nil:
				form[k] = ""
			case string:
				form[k] = x
			case json.Number:
				form[k] = x.String()
			case bool:
				form[k] = strconv.FormatBool(x)
			default:
				return nil, errors.New("nested values are not supported")
			}
		}
		return form, nil
	}

	values, err := url.ParseQuery(string(c.Body()))
	if err != nil {
		return nil, err
	}
	for k, v := range values {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}
	return form, nil
}
