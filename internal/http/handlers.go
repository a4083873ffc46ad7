package http

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"presswatch/app/internal/config"
	"presswatch/app/internal/db"
	"presswatch/app/internal/http/templates"
	"presswatch/app/internal/press"
)

const htmlContentType = "text/html; charset=utf-8"

// languageOptions drives the language filter dropdown.
var languageOptions = []string{config.LanguageEnglish, config.LanguageSinhala}

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type indexInput struct {
	Language    string `query:"language"`
	Newspaper   string `query:"newspaper"`
	PublishDate string `query:"publish_date"`
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Search   string `json:"search"`
		Mail     string `json:"mail"`
	}
}

func (s *Server) registerIndexRoute() {
	huma.Get(s.api, "/", s.indexHandler, htmlOperation("Browse the article archive", stdhttp.StatusInternalServerError))
}

func (s *Server) registerRunScanRoute() {
	huma.Post(s.api, "/run-scan", s.runScanHandler, htmlOperation(
		"Run a manual scan",
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) indexHandler(ctx context.Context, input *indexInput) (*htmlResponse, error) {
	filter := press.Filter{
		Language:    strings.TrimSpace(input.Language),
		Newspaper:   strings.TrimSpace(input.Newspaper),
		PublishDate: strings.TrimSpace(input.PublishDate),
	}

	articles, err := s.repository.List(ctx, filter)
	if err != nil {
		s.recordError(ctx, err, "listing articles", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't load the article archive right now.")
	}

	body, err := templates.RenderIndex(s.indexData(filter, nil, articles, ""))
	if err != nil {
		s.recordError(ctx, err, "rendering index page", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render the article archive.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) runScanHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	inserted := s.trigger.RunManual(ctx)

	// The archive below the banner is always the unfiltered full list.
	articles, err := s.repository.List(ctx, press.Filter{})
	if err != nil {
		s.recordError(ctx, err, "listing articles after scan", nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't load the article archive right now.")
	}

	flash := fmt.Sprintf("Scan completed. %d new articles found.", len(inserted))
	body, err := templates.RenderIndex(s.indexData(press.Filter{}, inserted, articles, flash))
	if err != nil {
		s.recordError(ctx, err, "rendering scan results", logrus.Fields{"new_articles": len(inserted)})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render the scan results.")
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.Search = "ready"
	resp.Body.Mail = "ready"

	sqlDB, err := db.SQLDB(s.db)
	if err != nil {
		s.recordError(ctx, err, "obtaining sql db", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	} else if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		s.recordError(ctx, pingErr, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
	}

	if !s.searchConfigured {
		resp.Body.Status = "degraded"
		resp.Body.Search = "unconfigured"
		if resp.Status == 0 {
			resp.Status = stdhttp.StatusServiceUnavailable
		}
	}

	// Missing mail credentials only disable digests, which is a supported
	// mode, so they are reported without degrading overall health.
	if !s.mailConfigured {
		resp.Body.Mail = "unconfigured"
	}

	if resp.Status == 0 {
		resp.Status = stdhttp.StatusOK
	}

	return resp, nil
}

func (s *Server) indexData(filter press.Filter, fresh, archive []press.Article, flash string) templates.IndexData {
	return templates.IndexData{
		Brand:       s.brand,
		Flash:       flash,
		NewArticles: articleRows(fresh),
		Articles:    articleRows(archive),
		Filters: templates.FilterValues{
			Language:    filter.Language,
			Newspaper:   filter.Newspaper,
			PublishDate: filter.PublishDate,
		},
		Newspapers: s.newspapers,
		Languages:  languageOptions,
	}
}

func articleRows(articles []press.Article) []templates.ArticleRow {
	rows := make([]templates.ArticleRow, 0, len(articles))
	for _, article := range articles {
		rows = append(rows, templates.ArticleRow{
			Newspaper:   article.Newspaper,
			Language:    article.Language,
			Title:       article.Title,
			URL:         article.URL,
			Snippet:     article.Snippet,
			QueryUsed:   article.QueryUsed,
			PublishDate: article.PublishDate,
		})
	}
	return rows
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) (*htmlResponse, error) {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	title := fmt.Sprintf("%s • %s Press Monitoring", label, s.brand)

	body, err := templates.RenderError(templates.ErrorPageData{
		Title:       title,
		StatusLabel: label,
		Message:     message,
	})
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := []byte(fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", label, message))
		return newHTMLResponse(status, fallback), nil
	}

	return newHTMLResponse(status, body), nil
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
