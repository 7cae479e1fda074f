package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/utils"
)

const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"

	stateTTL = 10 * time.Minute
)

var _ IOAuthService = (*OAuthService)(nil)

type IOAuthService interface {
	AuthCodeURL(ctx context.Context, provider string) (string, error)
	Callback(ctx context.Context, provider, state, code string) (*AuthResult, error)
}

// OAuthService runs the authorization code flow against GitHub and Google.
type OAuthService struct {
	States *utils.StateStore
	Users  IUserService

	configs map[string]*oauth2.Config
	// API roots, swapped out in tests
	githubAPI      string
	googleUserInfo string
}

// NewOAuthService registers every provider that has client credentials configured.
func NewOAuthService(cfg config.AppConfig, states *utils.StateStore, users IUserService) *OAuthService {
	base := strings.TrimRight(cfg.OAuthRedirectBase, "/")
	configs := map[string]*oauth2.Config{}
	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		configs[ProviderGitHub] = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/auth/oauth/%s/callback", base, ProviderGitHub),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		configs[ProviderGoogle] = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/auth/oauth/%s/callback", base, ProviderGoogle),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}
	}
	return &OAuthService{
		States:         states,
		Users:          users,
		configs:        configs,
		githubAPI:      "https://api.github.com",
		googleUserInfo: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (s *OAuthService) config(provider string) (*oauth2.Config, error) {
	c, ok := s.configs[strings.ToLower(provider)]
	if !ok {
		return nil, utils.ErrOAuthProvider
	}
	return c, nil
}

// AuthCodeURL returns the provider consent URL carrying a fresh single-use state.
func (s *OAuthService) AuthCodeURL(ctx context.Context, provider string) (string, error) {
	c, err := s.config(provider)
	if err != nil {
		return "", err
	}
	state := uuid.NewString()
	s.States.Save(ctx, state, stateTTL)
	return c.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Callback validates state, exchanges code and signs the provider identity in.
func (s *OAuthService) Callback(ctx context.Context, provider, state, code string) (*AuthResult, error) {
	c, err := s.config(provider)
	if err != nil {
		return nil, err
	}
	if !s.States.Consume(ctx, state) {
		return nil, utils.ErrInvalidOAuthState
	}
	if code == "" {
		return nil, utils.Validation("OAUTH_CODE_REQUIRED", "authorization code is required")
	}
	token, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, utils.ErrInvalidCredentials.Wrap(err)
	}
	client := c.Client(ctx, token)

	var profile *OAuthProfile
	switch strings.ToLower(provider) {
	case ProviderGitHub:
		profile, err = s.fetchGitHub(ctx, client)
	case ProviderGoogle:
		profile, err = s.fetchGoogle(ctx, client)
	}
	if err != nil {
		return nil, utils.Unexpected(err)
	}
	return s.Users.LoginWithProvider(ctx, *profile)
}

func getJSON(ctx context.Context, client *http.Client, url string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("GET %s: invalid json", url)
	}
	return gjson.ParseBytes(body), nil
}

func (s *OAuthService) fetchGitHub(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	user, err := getJSON(ctx, client, s.githubAPI+"/user")
	if err != nil {
		return nil, err
	}
	p := &OAuthProfile{
		Provider: ProviderGitHub,
		ID:       user.Get("id").String(),
		Username: user.Get("login").String(),
		Email:    user.Get("email").String(),
		Avatar:   user.Get("avatar_url").String(),
	}
	if p.Email == "" {
		// private emails are only listed on /user/emails
		if emails, err := getJSON(ctx, client, s.githubAPI+"/user/emails"); err == nil {
			p.Email = pickGitHubEmail(emails)
		}
	}
	return p, nil
}

// pickGitHubEmail prefers the primary verified address, then any verified one.
func pickGitHubEmail(emails gjson.Result) string {
	var fallback string
	emails.ForEach(func(_, e gjson.Result) bool {
		if !e.Get("verified").Bool() {
			return true
		}
		if e.Get("primary").Bool() {
			fallback = e.Get("email").String()
			return false
		}
		if fallback == "" {
			fallback = e.Get("email").String()
		}
		return true
	})
	return fallback
}

func (s *OAuthService) fetchGoogle(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	info, err := getJSON(ctx, client, s.googleUserInfo)
	if err != nil {
		return nil, err
	}
	p := &OAuthProfile{
		Provider: ProviderGoogle,
		ID:       info.Get("id").String(),
		Email:    info.Get("email").String(),
		Avatar:   info.Get("picture").String(),
	}
	if !info.Get("verified_email").Bool() {
		p.Email = ""
	}
	p.Username = strings.SplitN(info.Get("email").String(), "@", 2)[0]
	if p.Username == "" {
		p.Username = info.Get("name").String()
	}
	return p, nil
}
