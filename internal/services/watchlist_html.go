package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/luckfunc/stockbot/internal/models"
)

const watchlistImageWidth = 1280

// WatchlistRenderer turns a set of snapshots into a PNG table
type WatchlistRenderer interface {
	Render(ctx context.Context, title string, snaps []models.Snapshot, at time.Time) ([]byte, error)
}

// ChromeRenderer renders the watchlist through headless Chrome
type ChromeRenderer struct {
	Timeout time.Duration
}

type watchlistRowView struct {
	Symbol string
	Name   string
	Price  string
	Pct    string
	Chg    string
	Class  string
}

type watchlistView struct {
	Title     string
	Timestamp string
	Rows      []watchlistRowView
}

// Render implements WatchlistRenderer
func (r ChromeRenderer) Render(ctx context.Context, title string, snaps []models.Snapshot, at time.Time) ([]byte, error) {
	view := watchlistView{
		Title:     title,
		Timestamp: at.Format("2006-01-02 15:04:05"),
		Rows:      buildRowViews(snaps),
	}
	html, err := renderWatchlistHTML(view)
	if err != nil {
		return nil, err
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return renderHTMLToPNG(ctx, html, watchlistImageWidth, estimateWatchlistHeight(len(view.Rows)), timeout)
}

func renderWatchlistHTML(view watchlistView) (string, error) {
	tpl, err := template.New("watchlist").Parse(watchlistHTMLTemplate)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	if err := tpl.Execute(&builder, view); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func buildRowViews(snaps []models.Snapshot) []watchlistRowView {
	out := make([]watchlistRowView, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, watchlistRowView{
			Symbol: s.Symbol,
			Name:   s.Name,
			Price:  FormatFixed(s.LastTradePriceOnly, 2),
			Pct:    fmt.Sprintf("%+.2f%%", s.ChangeInPercent*100),
			Chg:    fmt.Sprintf("%+.2f", s.Change),
			Class:  trendClass(s.Change),
		})
	}
	return out
}

func trendClass(change float64) string {
	if change > 0 {
		return "up"
	}
	if change < 0 {
		return "down"
	}
	return "flat"
}

func estimateWatchlistHeight(rows int) int64 {
	const (
		basePadding    = 80
		titleHeight    = 42
		headerHeight   = 44
		rowHeight      = 48
		footerHeight   = 28
		sectionSpacing = 18
	)
	height := basePadding + titleHeight + headerHeight + footerHeight + sectionSpacing*2
	if rows < 1 {
		rows = 1
	}
	height += rows * rowHeight
	return int64(height)
}

func renderHTMLToPNG(parent context.Context, html string, width int, height int64, timeout time.Duration) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))
	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(width), height),
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(200*time.Millisecond),
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("render watchlist: %w", err)
	}
	return buf, nil
}

const watchlistHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <style>
    :root {
      --bg: #ffffff;
      --text: #1f1f1f;
      --muted: #6f6f6f;
      --line: #f0f0f0;
      --header: #f7f7f7;
      --up: #1ca05c;
      --down: #d83a3a;
      --flat: #8f8f8f;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      background: var(--bg);
      font-family: "Helvetica Neue", Arial, sans-serif;
      color: var(--text);
    }
    .container { width: 1200px; padding: 32px 40px 36px 40px; }
    .title { font-size: 30px; font-weight: 600; margin-bottom: 14px; }
    .table { width: 100%; border-collapse: collapse; font-size: 18px; }
    .table thead th {
      background: var(--header);
      color: var(--muted);
      font-weight: 500;
      padding: 12px;
      text-align: left;
      border-bottom: 1px solid var(--line);
    }
    .table tbody td { padding: 14px 12px; border-bottom: 1px solid var(--line); }
    .table tbody tr:nth-child(even) td { background: #fbfbfb; }
    .num { text-align: left; font-variant-numeric: tabular-nums; }
    .up { color: var(--up); }
    .down { color: var(--down); }
    .flat { color: var(--flat); }
    .footer { margin-top: 12px; font-size: 14px; color: var(--muted); }
  </style>
</head>
<body>
  <div class="container">
    <div class="title">{{.Title}}</div>
    <table class="table">
      <thead>
        <tr>
          <th style="width: 140px;">Symbol</th>
          <th>Name</th>
          <th class="num" style="width: 160px;">Last</th>
          <th class="num" style="width: 160px;">Change %</th>
          <th class="num" style="width: 160px;">Change</th>
        </tr>
      </thead>
      <tbody>
        {{if .Rows}}
          {{range .Rows}}
            <tr>
              <td>{{.Symbol}}</td>
              <td>{{.Name}}</td>
              <td class="num">{{.Price}}</td>
              <td class="num {{.Class}}">{{.Pct}}</td>
              <td class="num {{.Class}}">{{.Chg}}</td>
            </tr>
          {{end}}
        {{else}}
          <tr>
            <td colspan="5" style="color: var(--muted);">Not currently watching any symbols</td>
          </tr>
        {{end}}
      </tbody>
    </table>
    <div class="footer">Updated {{.Timestamp}}</div>
  </div>
</body>
</html>`
