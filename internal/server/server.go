package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"subscope/internal/config"
	"subscope/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for the monitoring dashboard.
type Server struct {
	db         *database.DB
	thresholds map[string]config.Threshold
	pages      map[string]*template.Template
	mux        *http.ServeMux
}

// New creates a new Server. The threshold table is used for display-level
// severity bucketing of per-label scores; it never changes what is flagged.
func New(db *database.DB, thresholds map[string]config.Threshold) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"score": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"rate": func(f float64) string {
			return fmt.Sprintf("%.1f", f)
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "flagged.html", "item.html", "topics.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, thresholds: thresholds, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/flagged", s.handleFlagged)
	s.mux.HandleFunc("/item/", s.handleItem)
	s.mux.HandleFunc("/topics", s.handleTopics)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	reports := make(map[string]*database.RunReport)
	for _, stage := range []string{"ingest", "classify", "topics"} {
		report, err := s.db.LastRunReport(stage)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		reports[stage] = report
	}

	recent, err := s.db.FlaggedClassifications(10)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Stats":   stats,
		"Reports": reports,
		"Recent":  recent,
	})
}

func (s *Server) handleFlagged(w http.ResponseWriter, r *http.Request) {
	flagged, err := s.db.FlaggedClassifications(200)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "flagged.html", map[string]any{
		"Flagged": flagged,
	})
}

// labelScore is a (label, score) pair for ordered display. Severity is the
// display bucket relative to the label's configured cutoffs: "high", "medium",
// or "" for scores below both (or labels with no cutoffs at all).
type labelScore struct {
	Label    string
	Score    float64
	Severity string
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/item/")
	if id == "" {
		http.Redirect(w, r, "/flagged", http.StatusFound)
		return
	}

	c, err := s.db.GetClassification(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.NotFound(w, r)
		return
	}

	data := map[string]any{
		"Classification": c,
		"Scores":         s.sortedScores(c.Scores),
	}
	if c.ItemType == "post" {
		post, err := s.db.GetPost(id)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		data["Post"] = post
	} else {
		comment, err := s.db.GetComment(id)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		data["Comment"] = comment
	}

	s.render(w, "item.html", data)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	categories, err := s.db.TopicCategories()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	mentions, err := s.db.GetCategoryTopicMentions(category)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	legacy, err := s.db.GetTopicMentions()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "topics.html", map[string]any{
		"Categories": categories,
		"Selected":   category,
		"Mentions":   mentions,
		"Legacy":     legacy,
	})
}

func (s *Server) sortedScores(scores map[string]float64) []labelScore {
	out := make([]labelScore, 0, len(scores))
	for label, score := range scores {
		out = append(out, labelScore{Label: label, Score: score, Severity: s.severity(label, score)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func (s *Server) severity(label string, score float64) string {
	t, ok := s.thresholds[label]
	if !ok {
		return ""
	}
	switch {
	case score >= t.High:
		return "high"
	case score >= t.Medium:
		return "medium"
	default:
		return ""
	}
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, thresholds map[string]config.Threshold, port int) error {
	srv, err := New(db, thresholds)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Dashboard listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
