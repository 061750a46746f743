package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the handlers on a chi router for plain net/http servers.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/overview", h.HandleOverview)
	r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
		h.HandleLoad(w, r, "")
	})
	r.Route("/collections/{collection}", func(r chi.Router) {
		r.Get("/", collectionHandler(h.HandleState))
		r.Post("/load", collectionHandler(h.HandleLoad))
		r.Get("/table", collectionHandler(h.HandleTable))
		r.Post("/select", collectionHandler(h.HandleSelect))
		r.Post("/annotate", collectionHandler(h.HandleAnnotate))
		r.Post("/tags", collectionHandler(h.HandleTag))
		r.Post("/submit", collectionHandler(h.HandleSubmit))
		r.Get("/funnel", collectionHandler(h.HandleFunnel))
		r.Get("/chart", collectionHandler(h.HandleChart))
	})
	r.Post("/entities/{entity}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleCreate(w, r, chi.URLParam(r, "entity"))
	})
	r.Delete("/entities/{entity}/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.HandleDelete(w, r, chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	})
	return r
}

func collectionHandler(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, chi.URLParam(r, "collection"))
	}
}
