package connector

import (
	"fmt"

	"go.uber.org/zap"

	"leadwatch/internal/lead"
)

// Credentials is the login material for one platform. CookiesJSON, when
// set, takes precedence over Email/Password.
type Credentials struct {
	Email       string
	Password    string
	CookiesJSON string
}

// Factory builds connectors per source type. Each call returns a fresh
// connector owning its own browser session.
type Factory struct {
	browser  BrowserConfig
	facebook Credentials
	nextdoor Credentials
	logger   *zap.Logger
}

// NewFactory creates a Factory.
func NewFactory(browser BrowserConfig, facebook, nextdoor Credentials, logger *zap.Logger) *Factory {
	return &Factory{browser: browser, facebook: facebook, nextdoor: nextdoor, logger: logger}
}

// Connector returns a connector for the source type.
func (f *Factory) Connector(t lead.SourceType) (lead.Connector, error) {
	switch t {
	case lead.SourceFacebook:
		return newFacebook(f.facebook, f.browser, f.logger.Named("facebook")), nil
	case lead.SourceNextdoor:
		return newNextdoor(f.nextdoor, f.browser, f.logger.Named("nextdoor")), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", t)
	}
}
