package http

import (
	"net/http"

	"studyforest/internal/auth"
	"studyforest/internal/config"
	"studyforest/internal/emoji"
	"studyforest/internal/habit"
	"studyforest/internal/http/handler"
	mw "studyforest/internal/http/middleware"
	"studyforest/internal/ledger"
	"studyforest/internal/study"
	"studyforest/internal/user"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Services are the domain services the routes are served by.
type Services struct {
	Studies *study.Service
	Habits  *habit.Service
	Emojis  *emoji.Service
	Ledger  *ledger.Service
	Users   *user.Service
}

func NewRouter(cfg config.Config, svc Services, jwtSvc *auth.JWT, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(mw.Logging(log)...)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	sh := &handler.StudyHandler{Svc: svc.Studies, JWT: jwtSvc}
	r.Route("/studies", func(r chi.Router) {
		r.Get("/", sh.List)
		r.Post("/", sh.Create)
		r.Get("/themes", sh.Themes)
		r.Post("/recent", sh.Recent)

		r.Get("/{id}", sh.Get)
		r.Post("/{id}/check-password", sh.CheckPassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireStudyAccess(jwtSvc, "id"))
			r.Patch("/{id}", sh.Update)
			r.Delete("/{id}", sh.Delete)
		})
	})

	hh := &handler.HabitHandler{Svc: svc.Habits}
	r.Route("/habits", func(r chi.Router) {
		r.Get("/", hh.List)
		r.Post("/", hh.Create)
		r.Post("/today", hh.Today)
		r.Put("/study/{studyId}", hh.ReplaceAll)
		r.Patch("/study/{studyId}/habits", hh.ReplaceAll)

		r.Get("/{id}", hh.Get)
		r.Patch("/{id}", hh.Update)
		r.Patch("/{id}/toggle", hh.Toggle)
		r.Delete("/{id}", hh.Delete)
	})

	eh := &handler.EmojiHandler{Svc: svc.Emojis}
	r.Route("/emojis", func(r chi.Router) {
		r.Get("/", eh.List)
		r.Post("/", eh.Create)
		r.Post("/react", eh.React)
		r.Post("/add", eh.Add)

		r.Get("/{id}", eh.Get)
		r.Patch("/{id}", eh.Update)
		r.Delete("/{id}", eh.Delete)
	})

	th := &handler.TimerHandler{Ledger: svc.Ledger}
	r.Route("/timers", func(r chi.Router) {
		r.Get("/", th.List)
		r.Post("/", th.Create)
		r.Get("/stats/study/{studyId}", th.StudyStats)
		r.Get("/stats/user/{userId}", th.UserStats)

		r.Get("/{id}", th.Get)
		r.Patch("/{id}", th.Update)
		r.Delete("/{id}", th.Delete)
	})

	uh := &handler.UserHandler{Svc: svc.Users}
	r.Route("/users", func(r chi.Router) {
		r.Get("/", uh.List)
		r.Post("/", uh.Create)

		r.Get("/{id}", uh.Get)
		r.Delete("/{id}", uh.Delete)
		r.Patch("/{id}/points", uh.SetPoints)
		r.Patch("/{id}/add-points", uh.AddPoints)
	})

	return r
}
