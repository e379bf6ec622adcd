package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
)

// ErrNotConnected is returned when no Google token is available.
var ErrNotConnected = errors.New("export: not connected to Google, authorize first")

// GoogleDocsConfig configures the Google Docs sink.
type GoogleDocsConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string

	// Endpoint overrides the Docs API base URL.
	Endpoint string
}

// GoogleDocs exports transcripts as new Google Docs. It authorizes with
// OAuth2 and keeps the token on disk.
type GoogleDocs struct {
	config    *oauth2.Config
	tokenPath string
	endpoint  string

	mu      sync.RWMutex
	token   *oauth2.Token
	service *docs.Service
}

// NewGoogleDocs creates the sink and loads a saved token when present.
func NewGoogleDocs(cfg GoogleDocsConfig) (*GoogleDocs, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:7860/auth/google/callback"
	}
	if cfg.TokenPath == "" {
		home, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(home, ".assistant", "google_token.json")
	}

	g := &GoogleDocs{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/documents",
				"https://www.googleapis.com/auth/drive.file",
			},
			Endpoint: google.Endpoint,
		},
		tokenPath: cfg.TokenPath,
		endpoint:  cfg.Endpoint,
	}

	if tok, err := g.loadToken(); err == nil {
		if err := g.connect(context.Background(), tok); err != nil {
			g.token = nil
		}
	}
	return g, nil
}

// AuthURL returns the consent page URL.
func (g *GoogleDocs) AuthURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange completes authorization with the code from the callback.
func (g *GoogleDocs) Exchange(ctx context.Context, code string) error {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if err := g.connect(ctx, tok); err != nil {
		return err
	}
	return g.saveToken(tok)
}

// Connected reports whether a token is loaded.
func (g *GoogleDocs) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.service != nil && g.token != nil
}

// Disconnect forgets the token and removes it from disk.
func (g *GoogleDocs) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.token, g.service = nil, nil
	if err := os.Remove(g.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Export creates a document holding the formatted transcript and returns
// its URL.
func (g *GoogleDocs) Export(ctx context.Context, t Transcript) (string, error) {
	g.mu.RLock()
	service := g.service
	g.mu.RUnlock()

	if service == nil {
		return "", ErrNotConnected
	}

	title := t.Title
	if title == "" {
		title = "Conversation Log"
	}
	if !t.Created.IsZero() {
		title += " " + t.Created.Format("2006-01-02 15:04")
	}

	doc, err := service.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	_, err = service.Documents.BatchUpdate(doc.DocumentId, &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: 1},
				Text:     Format(t),
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return DocURL(doc.DocumentId), fmt.Errorf("created doc but failed to add content: %w", err)
	}
	return DocURL(doc.DocumentId), nil
}

// DocURL returns the edit URL of a document.
func DocURL(id string) string {
	return fmt.Sprintf("https://docs.google.com/document/d/%s/edit", id)
}

func (g *GoogleDocs) connect(ctx context.Context, tok *oauth2.Token) error {
	opts := []option.ClientOption{option.WithHTTPClient(g.config.Client(context.Background(), tok))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	service, err := docs.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create docs service: %w", err)
	}

	g.mu.Lock()
	g.token, g.service = tok, service
	g.mu.Unlock()
	return nil
}

func (g *GoogleDocs) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(g.tokenPath)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (g *GoogleDocs) saveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(g.tokenPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.tokenPath, data, 0o600)
}
