// Package web embeds the chat page (dist/) and serves it.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// assetMaxAge is how long browsers may reuse app.js and style.css without
// asking again. The page itself is always revalidated so a new deploy shows up.
const assetMaxAge = "public, max-age=300"

// Handler serves the chat page and its assets. The page is answered for "/",
// "/index.html" and any path that names no asset, so client-side links and
// reloads land on the chat.
func Handler() http.Handler {
	dist, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to open embedded dist: " + err.Error())
	}
	page, err := fs.ReadFile(dist, "index.html")
	if err != nil {
		panic("web: embedded dist has no index.html: " + err.Error())
	}
	assets := http.FileServerFS(dist)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && name != "index.html" && isFile(dist, name) {
			w.Header().Set("Cache-Control", assetMaxAge)
			assets.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/html; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(page)
		}
	})
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
