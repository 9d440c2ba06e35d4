package web

import (
	"io/fs"
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Static files
	staticSubFS, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSubFS))))

	// Session
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	// Pages
	mux.HandleFunc("GET /{$}", s.page(s.handleDashboard))
	mux.HandleFunc("GET /sections/{name}", s.page(s.handleSectionPage))
	mux.HandleFunc("POST /sections/{name}", s.page(s.handleSaveSection))
	mux.HandleFunc("GET /collections/{name}", s.page(s.handleCollectionPage))
	mux.HandleFunc("POST /collections/{name}", s.page(s.handleAddItem))
	mux.HandleFunc("POST /collections/{name}/reorder", s.page(s.handleMoveItem))
	mux.HandleFunc("GET /collections/{name}/{id}", s.page(s.handleEditItemPage))
	mux.HandleFunc("POST /collections/{name}/{id}", s.page(s.handleEditItem))
	mux.HandleFunc("POST /collections/{name}/{id}/delete", s.page(s.handleDeleteItem))
	mux.HandleFunc("POST /preview/hero", s.page(s.handleHeroPreview))

	// Admin actions
	mux.HandleFunc("POST /api/upload", s.api(s.handleUpload))
	mux.HandleFunc("POST /publish", s.api(s.handleSessionPublish))

	// Publish trigger for token holders
	mux.HandleFunc("POST /api/publish", s.handleTokenPublish)

	// Content API
	mux.HandleFunc("GET /api/content", s.handleGetContent)
	mux.HandleFunc("GET /api/sections/{name}", s.api(s.handleAPIGetSection))
	mux.HandleFunc("PUT /api/sections/{name}", s.api(s.handleAPISaveSection))
	mux.HandleFunc("GET /api/collections/{name}", s.api(s.handleAPIListItems))
	mux.HandleFunc("POST /api/collections/{name}", s.api(s.handleAPICreateItem))
	mux.HandleFunc("PUT /api/collections/{name}/order", s.api(s.handleAPIReorder))
	mux.HandleFunc("GET /api/collections/{name}/{id}", s.api(s.handleAPIGetItem))
	mux.HandleFunc("PUT /api/collections/{name}/{id}", s.api(s.handleAPIUpdateItem))
	mux.HandleFunc("DELETE /api/collections/{name}/{id}", s.api(s.handleAPIDeleteItem))

	// System
	mux.HandleFunc("GET /health", s.handleHealth)

	// SSE (Server-Sent Events)
	mux.HandleFunc("GET /events", s.api(s.handleSSE))
}
