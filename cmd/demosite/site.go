package main

import (
	"encoding/xml"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type post struct {
	Slug  string
	Title string
	Body  string
}

var defaultPosts = []post{
	{Slug: "hello-world", Title: "Hello, world", Body: "The first post, rendered ahead of time."},
	{Slug: "static-assets", Title: "Static assets", Body: "Stylesheets and images are served from the bundle."},
}

var pages = template.Must(template.New("layout").Parse(`<!doctype html>
<html>
<head>
<title>{{.Title}}</title>
<link rel="stylesheet" href="/assets/site.css">
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
{{if .Posts}}<ul>{{range .Posts}}<li><a href="/posts/{{.Slug}}">{{.Title}}</a></li>{{end}}</ul>{{end}}
{{if .Body}}<article><h1>{{.Title}}</h1><p>{{.Body}}</p></article>{{end}}
</body>
</html>
`))

type pageData struct {
	Title string
	Body  string
	Posts []post
}

type rss struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

func newRouter(posts []post) http.Handler {
	bySlug := make(map[string]post, len(posts))
	for _, p := range posts {
		bySlug[p.Slug] = p
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		render(w, pageData{Title: "Demo site", Posts: posts})
	})
	r.Get("/about", func(w http.ResponseWriter, _ *http.Request) {
		render(w, pageData{Title: "About", Body: "A demo of pre-rendering with staticgen."})
	})
	r.Get("/posts/{slug}", func(w http.ResponseWriter, r *http.Request) {
		p, ok := bySlug[chi.URLParam(r, "slug")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		render(w, pageData{Title: p.Title, Body: p.Body})
	})
	r.Get("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		var feed rss
		feed.Version = "2.0"
		feed.Channel.Title = "Demo site"
		for _, p := range posts {
			feed.Channel.Items = append(feed.Channel.Items, rssItem{Title: p.Title, Link: "/posts/" + p.Slug})
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(xml.Header))
		if err := xml.NewEncoder(w).Encode(feed); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return r
}

func render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
