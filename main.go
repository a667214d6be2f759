package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

var (
	addr    = flag.String("addr", ":8080", "http service address")
	dataDir = flag.String("data", "DATA", "directory for persisted state")
)

// apiResult is the uniform failure/success envelope every handler returns.
type apiResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResult{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// withCORS applies the CORS headers and short-circuits preflight, and keeps
// any handler panic from crossing into the client as a dropped connection.
func withCORS(log *logrus.Entry, methods string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", rec).Error("handler panic")
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
			}
		}()
		next(w, r)
	}
}

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logger.WithField("component", "http")

	storage := NewStorage(*dataDir)
	users := NewUserManager(storage, logger.WithField("component", "users"))
	users.Load()

	session := NewSession(storage, logger)
	defer session.Close()

	hub := newHub(session, logger.WithField("component", "hub"))
	go hub.run()

	// requireAuth validates the bearer token on protected endpoints.
	requireAuth := func(w http.ResponseWriter, r *http.Request) bool {
		token := r.Header.Get("Authorization")
		if _, err := users.ValidateToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
			return false
		}
		return true
	}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, users, logger.WithField("component", "ws"), w, r)
	})

	http.HandleFunc("/api/register", withCORS(log, "POST", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := users.Register(req.Username, req.Password); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(apiResult{Success: true})
	}))

	http.HandleFunc("/api/login", withCORS(log, "POST", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		token, err := users.Login(req.Username, req.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeJSON(w, map[string]string{"token": token, "username": req.Username})
	}))

	http.HandleFunc("/api/logout", withCORS(log, "POST", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if token := r.Header.Get("Authorization"); token != "" {
			users.Logout(token)
		}
		writeJSON(w, apiResult{Success: true, Message: "logged out"})
	}))

	http.HandleFunc("/api/validate", withCORS(log, "GET", func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		username, err := users.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeJSON(w, map[string]string{"username": username, "valid": "true"})
	}))

	http.HandleFunc("/api/load", withCORS(log, "POST", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		if r.Method != "POST" {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file upload required: "+err.Error())
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}

		ds, err := session.LoadFile(data, header.Filename)
		if err != nil {
			status := http.StatusBadRequest
			if err == ErrLoadInFlight {
				status = http.StatusConflict
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, struct {
			Success    bool       `json:"success"`
			Filename   string     `json:"filename"`
			Headers    []string   `json:"headers"`
			RowCount   int        `json:"rowCount"`
			Projection Projection `json:"projection"`
			Widths     []int      `json:"widths"`
		}{
			Success:    true,
			Filename:   ds.Filename,
			Headers:    ds.Headers,
			RowCount:   len(ds.Rows),
			Projection: session.View("", 0),
			Widths:     session.Widths(),
		})
	}))

	http.HandleFunc("/api/view", withCORS(log, "GET", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		projection := session.View(r.URL.Query().Get("search"), page)
		writeJSON(w, struct {
			Projection Projection `json:"projection"`
			Widths     []int      `json:"widths,omitempty"`
			Settings   Settings   `json:"settings"`
			Loaded     bool       `json:"loaded"`
		}{projection, session.Widths(), session.Settings(), session.Loaded()})
	}))

	http.HandleFunc("/api/edit", withCORS(log, "POST", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		if r.Method != "POST" {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Key   string `json:"key"`
			Col   int    `json:"col"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := session.EditCell(req.Key, req.Col, req.Value); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, apiResult{Success: true})
	}))

	http.HandleFunc("/api/export", withCORS(log, "GET", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		format := r.URL.Query().Get("format")
		if format == "mailto" {
			link, err := session.MailtoLink()
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, map[string]string{"link": link})
			return
		}
		data, contentType, filename, err := session.Export(format)
		if err != nil {
			status := http.StatusBadRequest
			if err == ErrNoDatasetLoaded {
				status = http.StatusConflict
			}
			writeError(w, status, err.Error())
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.Write(data)
	}))

	http.HandleFunc("/api/settings", withCORS(log, "GET, PUT", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		switch r.Method {
		case "GET":
			writeJSON(w, session.Settings())
		case "PUT":
			var settings Settings
			if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, session.UpdateSettings(settings))
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}))

	http.HandleFunc("/api/recent", withCORS(log, "GET", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		writeJSON(w, session.Recent())
	}))

	http.HandleFunc("/api/reset", withCORS(log, "POST", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		if r.Method != "POST" {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		session.Reset()
		writeJSON(w, apiResult{Success: true})
	}))

	http.HandleFunc("/api/cache/clear", withCORS(log, "POST", func(w http.ResponseWriter, r *http.Request) {
		if !requireAuth(w, r) {
			return
		}
		if r.Method != "POST" {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		cleared := session.ClearCache()
		writeJSON(w, map[string]interface{}{"success": true, "lastCleared": cleared})
	}))

	// Simple health check
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	log.WithField("addr", *addr).Info("server started")
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.WithError(err).Fatal("listen and serve")
	}
}
