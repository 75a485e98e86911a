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
	facebookHome      = "https://www.facebook.com/"
	facebookLoginPage = "https://www.facebook.com/login/"
	facebookDomain    = ".facebook.com"
)

// facebookExtractJS pulls feed posts out of the rendered group page. Each
// article contributes its visible text, the permalink when one is present,
// and the author from the first profile link.
const facebookExtractJS = `
(() => {
  const posts = [];
  const articles = document.querySelectorAll('div[role="article"]');
  for (const article of articles) {
    const text = (article.innerText || '').trim();
    if (!text) continue;
    let url = '';
    let externalID = '';
    const link = article.querySelector('a[href*="/posts/"], a[href*="/permalink/"]');
    if (link) {
      url = link.href.split('?')[0];
      const m = url.match(/(?:posts|permalink)\/(\d+)/);
      if (m) externalID = m[1];
    }
    let author = '';
    const profile = article.querySelector('h3 a, h2 a, strong a');
    if (profile) author = (profile.innerText || '').trim();
    posts.push({external_id: externalID, url: url, text: text, author: author, posted_at: ''});
  }
  return posts;
})()
`

// facebookConnector logs into Facebook and scrapes group feeds.
type facebookConnector struct {
	creds  Credentials
	bcfg   BrowserConfig
	logger *zap.Logger
	b      *browser
}

func newFacebook(creds Credentials, bcfg BrowserConfig, logger *zap.Logger) *facebookConnector {
	return &facebookConnector{creds: creds, bcfg: bcfg, logger: logger}
}

// Login establishes an authenticated session. Exported session cookies are
// preferred over credentials; both absent is a credential failure.
func (c *facebookConnector) Login(ctx context.Context) error {
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
	return lead.NewCredentialError(lead.SourceFacebook, errors.New("no credentials configured"))
}

func (c *facebookConnector) loginWithCookies(ctx context.Context) error {
	setCookies, err := setCookiesAction(c.creds.CookiesJSON, facebookDomain)
	if err != nil {
		return lead.NewCredentialError(lead.SourceFacebook, err)
	}

	var landedURL string
	err = c.b.run(ctx,
		setCookies,
		chromedp.Navigate(facebookHome),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&landedURL),
	)
	if err != nil {
		return lead.NewCaptchaError(lead.SourceFacebook, err)
	}
	return classifyFacebookLanding(landedURL, errors.New("session cookies rejected"))
}

func (c *facebookConnector) loginWithCredentials(ctx context.Context) error {
	var landedURL string
	err := c.b.run(ctx,
		chromedp.Navigate(facebookLoginPage),
		chromedp.WaitVisible(`#email`, chromedp.ByID),
		chromedp.SendKeys(`#email`, c.creds.Email, chromedp.ByID),
		chromedp.SendKeys(`#pass`, c.creds.Password, chromedp.ByID),
		chromedp.Click(`button[name="login"]`, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&landedURL),
	)
	if err != nil {
		return lead.NewCaptchaError(lead.SourceFacebook, err)
	}
	return classifyFacebookLanding(landedURL, errors.New("email or password rejected"))
}

// classifyFacebookLanding inspects the post-login URL. A checkpoint page is
// a transient challenge; landing back on login means the credentials or
// cookies were rejected.
func classifyFacebookLanding(landedURL string, credentialCause error) error {
	switch {
	case strings.Contains(landedURL, "/checkpoint"), strings.Contains(landedURL, "captcha"):
		return lead.NewCaptchaError(lead.SourceFacebook, fmt.Errorf("challenged at %s", landedURL))
	case strings.Contains(landedURL, "/login"):
		return lead.NewCredentialError(lead.SourceFacebook, credentialCause)
	default:
		return nil
	}
}

// Fetch loads a group feed and extracts up to maxPosts candidate posts.
func (c *facebookConnector) Fetch(ctx context.Context, sourceURL string, maxPosts int) ([]lead.Post, error) {
	if c.b == nil {
		return nil, lead.NewFetchError(lead.FetchExtraction, sourceURL, errors.New("not logged in"))
	}

	var raw []rawPost
	err := c.b.run(ctx,
		chromedp.Navigate(sourceURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		scrollAction(3),
		chromedp.Evaluate(facebookExtractJS, &raw),
	)
	if err != nil {
		return nil, classifyFetchErr(err, sourceURL)
	}
	return toPosts(raw, lead.SourceFacebook, maxPosts), nil
}

// Close tears down the browser session.
func (c *facebookConnector) Close(context.Context) error {
	if c.b != nil {
		c.b.close()
		c.b = nil
	}
	return nil
}
