// ABOUTME: Server-rendered pages: the home feed with composer, the post placeholder, and sign-in.
// ABOUTME: Sign-in accepts a provider-issued session token and stores it in the session cookie.
package httpapi

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/auth"
	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/posts"
)

const (
	MsgInvalidToken  = "That session token is not valid."
	defaultReturnURL = "/"
)

var funcs = template.FuncMap{
	"ago": func(t time.Time) string { return humanize.Time(t) },
}

const layout = `{{define "layout"}}<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><main>{{template "content" .}}</main></body>
</html>{{end}}`

var homeTmpl = template.Must(template.New("home").Funcs(funcs).Parse(layout + `
{{define "content"}}
<header>
{{if .User}}
  <form method="post" action="/">
    <input name="content" placeholder="Type some emojis!" autocomplete="off" value="{{.Draft}}">
    <button type="submit">Post</button>
  </form>
  {{if .Toast}}<p role="alert">{{.Toast}}</p>{{end}}
  <form method="post" action="/sign-out">
    <button type="submit">Sign out @{{.User.Username}}</button>
  </form>
{{else}}
  <a href="/sign-in">Sign in</a>
{{end}}
</header>
{{if .FeedError}}
<p>{{.FeedError}}</p>
{{else}}
<ol>
{{range .Feed}}
  <li>
    <a href="/@{{.Author.Username}}">@{{.Author.Username}}</a> · <a href="/post/{{.Post.ID}}">{{ago .Post.CreatedAt}}</a>
    <p>{{.Post.Content}}</p>
  </li>
{{end}}
</ol>
{{end}}
{{end}}`))

var postTmpl = template.Must(template.New("post").Parse(layout + `
{{define "content"}}<div>{{.Body}}</div>{{end}}`))

var signInTmpl = template.Must(template.New("sign-in").Parse(layout + `
{{define "content"}}
<h1>Sign in</h1>
<p>Paste the session token issued by your identity provider.</p>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/sign-in">
  <input type="hidden" name="redirect_url" value="{{.RedirectURL}}">
  <textarea name="token" rows="4" cols="60"></textarea>
  <button type="submit">Sign in</button>
</form>
{{end}}`))

type homeView struct {
	Title     string
	User      *models.Author
	Feed      []models.PostWithAuthor
	FeedError string
	Draft     string
	Toast     string
}

type postView struct {
	Title string
	Body  string
}

type signInView struct {
	Title       string
	RedirectURL string
	Error       string
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", tmpl.Name()).Msg("render failed")
	}
}

func (s *Server) homeView(r *http.Request) homeView {
	view := homeView{Title: "chirp", User: caller(r)}
	feed, err := s.posts.GetAll(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to load feed")
		view.FeedError = posts.MsgFeedFailed
		return view
	}
	view.Feed = feed
	return view
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, homeTmpl, s.homeView(r))
}

// handleCompose is the form counterpart of posts.create.
func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	user := caller(r)
	if user == nil {
		http.Redirect(w, r, s.gate.SignInRedirect(defaultReturnURL), http.StatusFound)
		return
	}

	content := r.PostFormValue("content")
	if _, err := s.posts.Create(r.Context(), user, content); err != nil {
		view := s.homeView(r)
		view.Draft = content
		view.Toast = posts.ComposeErrorMessage(err)
		s.render(w, r, apierr.From(err).HTTPStatus(), homeTmpl, view)
		return
	}
	s.metrics.postsCreated.Inc()
	http.Redirect(w, r, defaultReturnURL, http.StatusSeeOther)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, postTmpl, postView{Title: posts.PostPageTitle, Body: posts.PostPageBody})
}

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, signInTmpl, signInView{
		Title:       "Sign in",
		RedirectURL: safeReturnURL(r.URL.Query().Get("redirect_url")),
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	returnTo := safeReturnURL(r.PostFormValue("redirect_url"))
	session, err := s.verify.Verify(strings.TrimSpace(r.PostFormValue("token")))
	if err != nil {
		zerolog.Ctx(r.Context()).Info().Err(err).Msg("sign-in rejected")
		s.render(w, r, http.StatusUnauthorized, signInTmpl, signInView{
			Title:       "Sign in",
			RedirectURL: returnTo,
			Error:       MsgInvalidToken,
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    strings.TrimSpace(r.PostFormValue("token")),
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, defaultReturnURL, http.StatusSeeOther)
}

// safeReturnURL keeps redirects on this site.
func safeReturnURL(u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.Contains(u, `\`) {
		return defaultReturnURL
	}
	return u
}
