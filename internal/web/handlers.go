package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/ops"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
	"github.com/hpungsan/cadence/internal/store"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	coord *ops.Coordinator
	store store.PostStore
	log   zerolog.Logger
}

// PostList is the body of GET /api/posts.
type PostList struct {
	Posts []post.Post `json:"posts"`
}

// RecommendationList is the body of GET and POST /api/recommendations.
type RecommendationList struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// ImportResult is the response of POST /api/recommendations.
type ImportResult struct {
	Imported int `json:"imported"`
}

// SlotList is the body of GET /api/slots.
type SlotList struct {
	Slots []recommend.TimeSlot `json:"slots"`
}

// RescheduleBody is the body of POST /api/posts/{id}/reschedule.
type RescheduleBody struct {
	ScheduledDate time.Time `json:"scheduled_date"`
}

// ActiveBody is the body of POST /api/slots/{id}/active.
type ActiveBody struct {
	Active bool `json:"active"`
}

// DeleteResult is the response of DELETE /api/posts/{id}.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// BestTimeResult is the response of GET /api/calendar/besttime. Ranked is
// set only when a limit is requested.
type BestTimeResult struct {
	Recommendation *recommend.Recommendation  `json:"recommendation"`
	Ranked         []recommend.Recommendation `json:"ranked,omitempty"`
}

// WindowList is the response of GET /api/calendar/windows.
type WindowList struct {
	Windows []recommend.Window `json:"windows"`
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListPosts handles GET /api/posts.
func (h *Handlers) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := calendar.ParseQuery(r.URL.Query())
	if err != nil {
		renderError(w, err)
		return
	}
	posts, err := h.store.List(r.Context(), credentials(r), filter)
	if err != nil {
		renderError(w, err)
		return
	}
	if posts == nil {
		posts = []post.Post{}
	}
	renderJSON(w, http.StatusOK, PostList{Posts: posts})
}

// HandleGetPost handles GET /api/posts/{id}.
func (h *Handlers) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), credentials(r), r.PathValue("id"))
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, p)
}

// HandleCreatePost handles POST /api/posts.
func (h *Handlers) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var body post.CreateRequest
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	p, err := h.coord.CreatePost(r.Context(), request(r), body)
	h.renderMutation(w, http.StatusCreated, "create", p, err)
}

// HandleUpdatePost handles PATCH /api/posts/{id}.
func (h *Handlers) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var body post.UpdateRequest
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	p, err := h.coord.UpdatePost(r.Context(), request(r), r.PathValue("id"), body)
	h.renderMutation(w, http.StatusOK, "update", p, err)
}

// HandleReschedulePost handles POST /api/posts/{id}/reschedule.
func (h *Handlers) HandleReschedulePost(w http.ResponseWriter, r *http.Request) {
	var body RescheduleBody
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	p, err := h.coord.ReschedulePost(r.Context(), request(r), r.PathValue("id"), body.ScheduledDate)
	h.renderMutation(w, http.StatusOK, "reschedule", p, err)
}

// HandleDeletePost handles DELETE /api/posts/{id}.
func (h *Handlers) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.coord.DeletePost(r.Context(), request(r), id)
	if err != nil && !h.appliedDespite("delete", id, err) {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, DeleteResult{ID: id, Deleted: true})
}

// renderMutation writes the outcome of a post mutation. A CONSISTENCY error
// means the store applied the change and only this server's derived cache
// failed to refresh, so the client still gets the post.
func (h *Handlers) renderMutation(w http.ResponseWriter, status int, op string, p *post.Post, err error) {
	if err != nil && (p == nil || !h.appliedDespite(op, p.ID, err)) {
		renderError(w, err)
		return
	}
	renderJSON(w, status, p)
}

func (h *Handlers) appliedDespite(op, postID string, err error) bool {
	if !errors.Is(err, errors.ErrConsistency) {
		return false
	}
	h.log.Warn().Err(err).Str("op", op).Str("post_id", postID).Msg("derived cache refresh failed after mutation")
	return true
}

// HandleListRecommendations handles GET /api/recommendations.
func (h *Handlers) HandleListRecommendations(w http.ResponseWriter, r *http.Request) {
	platform := post.Platform(r.URL.Query().Get("platform"))
	recs, err := h.store.Recommendations(r.Context(), credentials(r), platform)
	if err != nil {
		renderError(w, err)
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	renderJSON(w, http.StatusOK, RecommendationList{Recommendations: recs})
}

// HandleImportRecommendations handles POST /api/recommendations.
func (h *Handlers) HandleImportRecommendations(w http.ResponseWriter, r *http.Request) {
	var body RecommendationList
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	n, err := h.coord.ImportRecommendations(r.Context(), request(r), body.Recommendations)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, ImportResult{Imported: n})
}

// HandleListSlots handles GET /api/slots.
func (h *Handlers) HandleListSlots(w http.ResponseWriter, r *http.Request) {
	platform := post.Platform(r.URL.Query().Get("platform"))
	slots, err := h.coord.TimeSlots(r.Context(), request(r), platform)
	if err != nil {
		renderError(w, err)
		return
	}
	if slots == nil {
		slots = []recommend.TimeSlot{}
	}
	renderJSON(w, http.StatusOK, SlotList{Slots: slots})
}

// HandleSaveSlot handles PUT /api/slots/{id}. The path id wins over any id
// in the body.
func (h *Handlers) HandleSaveSlot(w http.ResponseWriter, r *http.Request) {
	var body recommend.TimeSlot
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	body.ID = r.PathValue("id")
	slot, err := h.coord.SaveTimeSlot(r.Context(), request(r), body)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, slot)
}

// HandleSetSlotActive handles POST /api/slots/{id}/active.
func (h *Handlers) HandleSetSlotActive(w http.ResponseWriter, r *http.Request) {
	var body ActiveBody
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	slot, err := h.coord.SetTimeSlotActive(r.Context(), request(r), r.PathValue("id"), body.Active)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, slot)
}

// HandleEvents handles GET /api/calendar/events.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := calendar.ParseQuery(r.URL.Query())
	if err != nil {
		renderError(w, err)
		return
	}
	res, err := h.coord.GetEvents(r.Context(), request(r), filter)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, res)
}

// HandleDensity handles GET /api/calendar/density. Year and month default to
// the current month in the display timezone.
func (h *Handlers) HandleDensity(w http.ResponseWriter, r *http.Request) {
	filter, err := calendar.ParseQuery(r.URL.Query())
	if err != nil {
		renderError(w, err)
		return
	}
	now := h.coord.Now().In(h.coord.Location())
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		renderError(w, err)
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil {
		renderError(w, err)
		return
	}
	res, err := h.coord.GetDensity(r.Context(), request(r), year, time.Month(month), filter)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, res)
}

// HandleBestTime handles GET /api/calendar/besttime.
func (h *Handlers) HandleBestTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	platform := post.Platform(q.Get("platform"))
	day, err := weekdayParam(r, "day")
	if err != nil {
		renderError(w, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		renderError(w, err)
		return
	}

	best, err := h.coord.GetBestTime(r.Context(), request(r), platform, day)
	if err != nil {
		renderError(w, err)
		return
	}
	out := BestTimeResult{Recommendation: best}
	if limit > 0 {
		out.Ranked, err = h.coord.RankBestTimes(r.Context(), request(r), platform, day, limit)
		if err != nil {
			renderError(w, err)
			return
		}
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleWindows handles GET /api/calendar/windows.
func (h *Handlers) HandleWindows(w http.ResponseWriter, r *http.Request) {
	from, err := timeParam(r, "from")
	if err != nil {
		renderError(w, err)
		return
	}
	until, err := timeParam(r, "until")
	if err != nil {
		renderError(w, err)
		return
	}
	platform := post.Platform(r.URL.Query().Get("platform"))
	windows, err := h.coord.UpcomingWindows(r.Context(), request(r), platform, from, until)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, WindowList{Windows: windows})
}

// HandleICS handles GET /api/calendar.ics.
func (h *Handlers) HandleICS(w http.ResponseWriter, r *http.Request) {
	filter, err := calendar.ParseQuery(r.URL.Query())
	if err != nil {
		renderError(w, err)
		return
	}
	doc, res, err := h.coord.ExportICS(r.Context(), request(r), filter, r.URL.Query().Get("name"))
	if err != nil {
		renderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("X-Cadence-Source", string(res.Source))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// credentials forwards the caller's bearer token to the store.
func credentials(r *http.Request) store.Credentials {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return store.Credentials{Token: token}
}

func request(r *http.Request) ops.Request {
	return ops.Request{Credentials: credentials(r)}
}

// intParam parses an integer query parameter with a default value.
func intParam(r *http.Request, name string, defaultVal int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewValidation(name, name+" must be an integer")
	}
	return v, nil
}

// weekdayParam parses an optional day query parameter.
func weekdayParam(r *http.Request, name string) (*time.Weekday, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	d, err := recommend.ParseWeekday(s)
	if err != nil {
		return nil, errors.NewValidation(name, err.Error())
	}
	return &d, nil
}

// timeParam parses an optional RFC3339 query parameter.
func timeParam(r *http.Request, name string) (time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.NewValidation(name, name+" must be an RFC3339 timestamp")
	}
	return t.UTC(), nil
}
