// Package routes holds the handler units compiled into the server.
package routes

import (
	"context"
	"html/template"
	"net/http"

	"github.com/yndnr/hostgate/internal/core/handler"
)

// Built-in unit ids.
const (
	WelcomeID       = "routes/welcome"
	HTTPSRedirectID = "routes/https-redirect"
)

// TitleFunc reports the current server title.
type TitleFunc func() string

// Register adds the built-in units to reg.
func Register(reg *handler.Registry, title TitleFunc) error {
	if title == nil {
		title = func() string { return "" }
	}
	units := []handler.Unit{
		{
			ID: WelcomeID,
			Load: func(context.Context, handler.Deps) (any, error) {
				return Welcome(title), nil
			},
		},
		{
			ID: HTTPSRedirectID,
			Load: func(context.Context, handler.Deps) (any, error) {
				return HTTPSRedirect(), nil
			},
		},
	}
	for _, u := range units {
		if err := reg.Register(u); err != nil {
			return err
		}
	}
	return nil
}

var welcomePage = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Host}}</h1>
<p>Served by {{.Title}} over {{.Scheme}}.</p>
</body>
</html>
`))

// Welcome answers every request with a page naming the host.
func Welcome(title TitleFunc) handler.Handler {
	return handler.HandlerFunc(func(x *handler.Exchange) error {
		x.Writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		return welcomePage.Execute(x.Writer, struct {
			Title, Host, Scheme string
		}{title(), x.Host, x.Scheme.String()})
	})
}

// HTTPSRedirect sends GET requests to the same URL over https. Other
// methods get a 400.
func HTTPSRedirect() handler.Handler {
	return handler.HandlerFunc(func(x *handler.Exchange) error {
		if x.Request.Method != http.MethodGet {
			x.Writer.WriteHeader(http.StatusBadRequest)
			return nil
		}
		http.Redirect(x.Writer, x.Request, "https://"+x.Host+x.Request.URL.RequestURI(), http.StatusMovedPermanently)
		return nil
	})
}
