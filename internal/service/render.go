package service

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"news_portal/internal/domain"
)

//go:embed templates/*
var templatesFS embed.FS

// Renderer turns posts into notification and digest emails.
type Renderer struct {
	html          *htmltemplate.Template
	text          *texttemplate.Template
	policy        *bluemonday.Policy
	scheme        string
	locales       []string
	previewLength int
}

func NewRenderer(scheme string, locales []string, previewLength int) (*Renderer, error) {
	htmlTmpl, err := htmltemplate.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	textTmpl, err := texttemplate.ParseFS(templatesFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	if scheme == "" {
		scheme = "http"
	}

	return &Renderer{
		html:          htmlTmpl,
		text:          textTmpl,
		policy:        bluemonday.StrictPolicy(),
		scheme:        scheme,
		locales:       locales,
		previewLength: previewLength,
	}, nil
}

type notificationData struct {
	User    domain.User
	Post    domain.Post
	Preview string
	Link    string
}

type digestItem struct {
	Title     string
	Link      string
	CreatedAt time.Time
}

type digestData struct {
	User     domain.User
	Category domain.Category
	Items    []digestItem
}

func (r *Renderer) Notification(user domain.User, post domain.Post, siteDomain string) (domain.Email, error) {
	data := notificationData{
		User:    user,
		Post:    post,
		Preview: r.Preview(post.Content),
		Link:    r.PostLink(siteDomain, post.ID),
	}

	return r.render(user.Email, post.Title, "notification", data)
}

func (r *Renderer) Digest(user domain.User, category domain.Category, posts []domain.Post, siteDomain string) (domain.Email, error) {
	data := digestData{
		User:     user,
		Category: category,
		Items:    make([]digestItem, len(posts)),
	}
	for i, p := range posts {
		data.Items[i] = digestItem{
			Title:     p.Title,
			Link:      r.PostLink(siteDomain, p.ID),
			CreatedAt: p.CreatedAt,
		}
	}

	subject := fmt.Sprintf("New posts in «%s» this week", category.Name)
	return r.render(user.Email, subject, "digest", data)
}

func (r *Renderer) render(to, subject, name string, data any) (domain.Email, error) {
	var htmlBody, textBody bytes.Buffer
	if err := r.html.ExecuteTemplate(&htmlBody, name+".html", data); err != nil {
		return domain.Email{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := r.text.ExecuteTemplate(&textBody, name+".txt", data); err != nil {
		return domain.Email{}, fmt.Errorf("render %s text: %w", name, err)
	}

	return domain.Email{
		To:       to,
		Subject:  subject,
		TextBody: textBody.String(),
		HTMLBody: htmlBody.String(),
	}, nil
}

// Preview strips markup and truncates content to the configured number of
// characters, appending an ellipsis.
func (r *Renderer) Preview(content string) string {
	plain := strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(content)))
	runes := []rune(plain)
	if len(runes) > r.previewLength {
		runes = runes[:r.previewLength]
	}
	return string(runes) + "..."
}

// PostLink builds the deep link to a post on the canonical domain.
func (r *Renderer) PostLink(siteDomain string, postID int64) string {
	return r.scheme + "://" + CanonicalHost(siteDomain, r.locales) + "/news/" + strconv.FormatInt(postID, 10) + "/"
}

// CanonicalHost removes scheme, trailing slashes and any locale path segment
// from a configured site domain.
func CanonicalHost(siteDomain string, locales []string) string {
	d := strings.TrimSpace(siteDomain)
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}

	segments := strings.Split(d, "/")
	kept := segments[:0]
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if i > 0 && isLocale(seg, locales) {
			continue
		}
		kept = append(kept, seg)
	}

	return strings.Join(kept, "/")
}

func isLocale(seg string, locales []string) bool {
	for _, l := range locales {
		if strings.EqualFold(seg, l) {
			return true
		}
	}
	return false
}
