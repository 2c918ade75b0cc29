package gmail

// Config holds Gmail OAuth configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	// RedirectURL is the fixed redirect target of the manual authorization
	// flow. There is no endpoint listening there; the account owner copies
	// the code (or the whole redirect URL) back by hand.
	RedirectURL string `env:"GMAIL_OAUTH_REDIRECT_URL" envDefault:"http://localhost"`
}
