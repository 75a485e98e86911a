package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"leadwatch/internal/lead"
)

const (
	nextdoorHome      = "https://nextdoor.com/news_feed/"
	nextdoorLoginPage = "https://nextdoor.com/login/"
	nextdoorDomain    = ".nextdoor.com"
)

// nextdoorExtractJS pulls feed posts out of the rendered page. Nextdoor
// renders posts as story cards with a stable permalink containing the
// numeric post id.
const nextdoorExtractJS = `
(() => {
  const posts = [];
  const cards = document.querySelectorAll('div[data-testid="styled-post-container"], div[class*="post-container"]');
  for (const card of cards) {
    const text = (card.innerText || '').trim();
    if (!text) continue;
    let url = '';
    let externalID = '';
    const link = card.querySelector('a[href*="/p/"]');
    if (link) {
      url = link.href.split('?')[0];
      const m = url.match(/\/p\/([A-Za-z0-9_-]+)/);
      if (m) externalID = m[1];
    }
    let author = '';
    const profile = card.querySelector('a[href*="/profile/"]');
    if (profile) author = (profile.innerText || '').trim();
    posts.push({external_id: externalID, url: url, text: text, author: author, posted_at: ''});
  }
  return posts;
})()
`

// nextdoorConnector logs into Nextdoor and scrapes neighborhood feeds.
type nextdoorConnector struct {
	creds  Credentials
	bcfg   BrowserConfig
	logger *zap.Logger
	b      *browser
}

func newNextdoor(creds Credentials, bcfg BrowserConfig, logger *zap.Logger) *nextdoorConnector {
	return &nextdoorConnector{creds: creds, bcfg: bcfg, logger: logger}
}

// Login establishes an authenticated session, preferring session cookies.
func (c *nextdoorConnector) Login(ctx context.Context) error {
	b, err := newBrowser(c.bcfg, c.logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	c.b = b

	if c.creds.CookiesJSON != "" {
		return c.loginWithCookies(ctx)
	}
	if c.creds.Email != "" && c.creds.Password != "" {
		return c.loginWithCredentials(ctx)
	}
	return lead.NewCredentialError(lead.SourceNextdoor, errors.New("no credentials configured"))
}

func (c *nextdoorConnector) loginWithCookies(ctx context.Context) error {
	setCookies, err := setCookiesAction(c.creds.CookiesJSON, nextdoorDomain)
	if err != nil {
		return lead.NewCredentialError(lead.SourceNextdoor, err)
	}

	var landedURL string
	err = c.b.run(ctx,
		setCookies,
		chromedp.Navigate(nextdoorHome),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&landedURL),
	)
	if err != nil {
		return lead.NewCaptchaError(lead.SourceNextdoor, err)
	}
	return classifyNextdoorLanding(landedURL, errors.New("session cookies rejected"))
}

func (c *nextdoorConnector) loginWithCredentials(ctx context.Context) error {
	var landedURL string
	err := c.b.run(ctx,
		chromedp.Navigate(nextdoorLoginPage),
		chromedp.WaitVisible(`#id_email`, chromedp.ByID),
		chromedp.SendKeys(`#id_email`, c.creds.Email, chromedp.ByID),
		chromedp.SendKeys(`#id_password`, c.creds.Password, chromedp.ByID),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&landedURL),
	)
	if err != nil {
		return lead.NewCaptchaError(lead.SourceNextdoor, err)
	}
	return classifyNextdoorLanding(landedURL, errors.New("email or password rejected"))
}

func classifyNextdoorLanding(landedURL string, credentialCause error) error {
	switch {
	case strings.Contains(landedURL, "challenge"), strings.Contains(landedURL, "captcha"):
		return lead.NewCaptchaError(lead.SourceNextdoor, fmt.Errorf("challenged at %s", landedURL))
	case strings.Contains(landedURL, "/login"):
		return lead.NewCredentialError(lead.SourceNextdoor, credentialCause)
	default:
		return nil
	}
}

// Fetch loads a neighborhood feed and extracts up to maxPosts candidates.
func (c *nextdoorConnector) Fetch(ctx context.Context, sourceURL string, maxPosts int) ([]lead.Post, error) {
	if c.b == nil {
		return nil, lead.NewFetchError(lead.FetchExtraction, sourceURL, errors.New("not logged in"))
	}

	var raw []rawPost
	err := c.b.run(ctx,
		chromedp.Navigate(sourceURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		scrollAction(3),
		chromedp.Evaluate(nextdoorExtractJS, &raw),
	)
	if err != nil {
		return nil, classifyFetchErr(err, sourceURL)
	}
	return toPosts(raw, lead.SourceNextdoor, maxPosts), nil
}

// Close tears down the browser session.
func (c *nextdoorConnector) Close(context.Context) error {
	if c.b != nil {
		c.b.close()
		c.b = nil
	}
	return nil
}
