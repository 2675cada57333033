// Package site serves the HTML movie-ranking workflow.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/okian/movierank/internal/adapters/catalog"
	"github.com/okian/movierank/internal/adapters/http/api"
	"github.com/okian/movierank/internal/adapters/repository"
	app "github.com/okian/movierank/internal/app"
	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/pkg/logger"
)

// Dependencies required by the site handlers.
type Dependencies interface {
	MultiUser() bool
	ConfiguredOwners() []string

	ListMovies(ctx context.Context, owner string) ([]model.Movie, error)
	Owners(ctx context.Context) ([]string, error)
	UnassignedMovies(ctx context.Context) ([]model.Movie, error)
	Search(ctx context.Context, query string) ([]model.CatalogResult, error)
	Select(ctx context.Context, catalogID int64) (model.Selection, error)
	Movie(ctx context.Context, id int64) (model.Movie, error)
	Rate(ctx context.Context, id int64, rating float64, review, owner string) (model.Movie, error)
	Remove(ctx context.Context, id int64) (model.Movie, error)
}

// Handler serves the site pages.
type Handler struct {
	deps     Dependencies
	views    *views
	forms    *formValidator
	logger   logger.Logger
	multi    bool
	owners   []string
	staticFS http.Handler
}

// Option applies a configuration option to the Handler.
type Option func(*Handler)

// WithLogger sets a custom logger for the handler.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates the site handler. It fails only if the embedded templates do
// not parse.
func New(deps Dependencies, opts ...Option) (*Handler, error) {
	h := &Handler{
		deps:   deps,
		multi:  deps.MultiUser(),
		owners: deps.ConfiguredOwners(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Named("site")
	}

	v, err := parseViews()
	if err != nil {
		return nil, err
	}
	h.views = v

	fv, err := newFormValidator(h.owners)
	if err != nil {
		return nil, err
	}
	h.forms = fv
	h.staticFS = http.StripPrefix("/static/", http.FileServer(FS()))
	return h, nil
}

// Register attaches the site routes to r.
func (h *Handler) Register(_ context.Context, r chi.Router) {
	r.Get("/", api.MetricsMiddleware(h.HandleHome, "home"))
	r.Get("/display", api.MetricsMiddleware(h.HandleDisplay, "display"))
	r.Get("/unassigned", api.MetricsMiddleware(h.HandleUnassigned, "unassigned"))
	r.Get("/add", api.MetricsMiddleware(h.HandleAddForm, "add"))
	r.Post("/add", api.MetricsMiddleware(h.HandleAddSearch, "add"))
	r.Get("/find", api.MetricsMiddleware(h.HandleFind, "find"))
	r.Get("/edit", api.MetricsMiddleware(h.HandleEditForm, "edit"))
	r.Post("/edit", api.MetricsMiddleware(h.HandleEditSubmit, "edit"))
	r.Get("/delete", api.MetricsMiddleware(h.HandleDelete, "delete"))
	r.Get("/static/*", h.staticFS.ServeHTTP)
}

// HandleHome handles GET /. It lists every movie, or shows the owner menu
// when movies are partitioned by owner.
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.multi {
		owners, err := h.deps.Owners(ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		orphans, err := h.deps.UnassignedMovies(ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.render(w, r, http.StatusOK, pageWelcome, pageData{
			Title:           "Welcome",
			Owners:          owners,
			UnassignedCount: len(orphans),
		})
		return
	}

	movies, err := h.deps.ListMovies(ctx, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageIndex, pageData{Movies: movies})
}

// HandleDisplay handles GET /display?user=<owner>.
func (h *Handler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	if !h.multi {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	owner := r.URL.Query().Get("user")
	if owner == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	movies, err := h.deps.ListMovies(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageIndex, pageData{Title: owner, Owner: owner, Movies: movies})
}

// HandleUnassigned handles GET /unassigned: movies nobody owns yet.
func (h *Handler) HandleUnassigned(w http.ResponseWriter, r *http.Request) {
	if !h.multi {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	movies, err := h.deps.UnassignedMovies(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageIndex, pageData{Title: "Unassigned", Unassigned: true, Movies: movies})
}

// HandleAddForm handles GET /add.
func (h *Handler) HandleAddForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageAdd, pageData{
		Title:  "Add Movie",
		Exists: r.URL.Query().Get("exists"),
	})
}

// HandleAddSearch handles POST /add: validates the title and lists catalog
// candidates.
func (h *Handler) HandleAddSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	form, values := bindAdd(r.PostForm)
	if errs := h.forms.check(form); errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, pageAdd, pageData{Title: "Add Movie", Form: values, Errors: errs})
		return
	}

	results, err := h.deps.Search(r.Context(), form.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageSelect, pageData{Title: "Select Movie", Form: values, Results: results})
}

// HandleFind handles GET /find?movie_id=<catalog id>.
func (h *Handler) HandleFind(w http.ResponseWriter, r *http.Request) {
	catalogID, err := app.ParseID(r.URL.Query().Get("movie_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sel, err := h.deps.Select(r.Context(), catalogID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sel.Duplicate {
		http.Redirect(w, r, "/add?exists="+url.QueryEscape(sel.Title), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, editURL(sel.ID), http.StatusSeeOther)
}

// HandleEditForm handles GET /edit?database_id=<id>.
func (h *Handler) HandleEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := app.ParseID(r.URL.Query().Get("database_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.deps.Movie(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pageEdit, pageData{
		Title:  m.Title,
		Movie:  m,
		Owners: h.owners,
		Form: formValues{
			Rating: m.RatingText(),
			Review: m.ReviewText(),
			Owner:  m.OwnerName(),
		},
	})
}

// HandleEditSubmit handles POST /edit?database_id=<id>.
func (h *Handler) HandleEditSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := app.ParseID(r.URL.Query().Get("database_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	form, values, parseErrs := bindEdit(r.PostForm)
	if errs := mergeErrors(parseErrs, h.forms.check(form)); errs != nil {
		m, err := h.deps.Movie(ctx, id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, pageEdit, pageData{
			Title:  m.Title,
			Movie:  m,
			Owners: h.owners,
			Form:   values,
			Errors: errs,
		})
		return
	}

	m, err := h.deps.Rate(ctx, id, *form.Rating, form.Review, form.Owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, h.listURL(m.OwnerName()), http.StatusSeeOther)
}

// HandleDelete handles GET /delete?database_id=<id>.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := app.ParseID(r.URL.Query().Get("database_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.deps.Remove(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, h.listURL(m.OwnerName()), http.StatusSeeOther)
}

func (h *Handler) listURL(owner string) string {
	if !h.multi || owner == "" {
		return "/"
	}
	return "/display?user=" + url.QueryEscape(owner)
}

func editURL(id int64) string {
	return fmt.Sprintf("/edit?database_id=%d", id)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	data.MultiUser = h.multi
	data.RequestID = logger.RequestIDFromContext(r.Context())
	if err := h.views.render(w, status, page, data); err != nil {
		h.logger.Error(r.Context(), "failed to render page", logger.String("page", page), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// fail renders the error page with the status matching err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	} else {
		h.logger.Debug(r.Context(), "request rejected",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	h.render(w, r, status, pageError, pageData{Title: http.StatusText(status), Status: status, Message: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidID):
		return http.StatusBadRequest, "That link is missing a valid id."
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "The form could not be read."
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "That movie is not in the list."
	case errors.Is(err, app.ErrUnknownOwner):
		return http.StatusNotFound, "There is no collection with that name."
	case errors.Is(err, repository.ErrInvalidRating):
		return http.StatusUnprocessableEntity, "Rating must be between 0 and 10."
	case errors.Is(err, catalog.ErrEmptyQuery):
		return http.StatusUnprocessableEntity, "Type a movie title to search for."
	case errors.Is(err, catalog.ErrUpstream),
		errors.Is(err, catalog.ErrUnavailable),
		errors.Is(err, catalog.ErrMalformedResponse):
		return http.StatusBadGateway, "The movie catalog is unavailable right now."
	default:
		return http.StatusInternalServerError, "Something went wrong."
	}
}
