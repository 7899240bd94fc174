package github

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v68/github"

	"codesensei/internal/errs"
	"codesensei/internal/ports"
)

// AppClient implements ports.PullRequestClient on top of GitHub App
// installation auth. Installation transports are cached per installation id
// because ghinstallation refreshes its own tokens.
type AppClient struct {
	appID      int64
	privateKey []byte

	mu      sync.Mutex
	clients map[int64]*gogithub.Client
}

var _ ports.PullRequestClient = (*AppClient)(nil)

func NewAppClient(appID int64, privateKey []byte) (*AppClient, error) {
	if appID == 0 {
		return nil, errors.New("github app id is required")
	}
	if len(privateKey) == 0 {
		return nil, errors.New("github app private key is required")
	}

	return &AppClient{
		appID:      appID,
		privateKey: privateKey,
		clients:    make(map[int64]*gogithub.Client),
	}, nil
}

func (c *AppClient) clientFor(installationID int64) (*gogithub.Client, error) {
	if installationID == 0 {
		return nil, errors.New("installation id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[installationID]; ok {
		return client, nil
	}

	transport, err := ghinstallation.New(http.DefaultTransport, c.appID, installationID, c.privateKey)
	if err != nil {
		return nil, errs.Wrap(err, "create installation transport")
	}

	client := gogithub.NewClient(&http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	})
	c.clients[installationID] = client
	return client, nil
}

func (c *AppClient) FetchDiff(ctx context.Context, installationID int64, owner string, repo string, number int) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	client, err := c.clientFor(installationID)
	if err != nil {
		return "", err
	}

	diff, _, err := client.PullRequests.GetRaw(ctx, owner, repo, number, gogithub.RawOptions{Type: gogithub.Diff})
	if err != nil {
		return "", errs.Wrapf(err, "fetch diff for %s/%s#%d", owner, repo, number)
	}
	return diff, nil
}

func (c *AppClient) PostComment(ctx context.Context, installationID int64, owner string, repo string, number int, body string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	client, err := c.clientFor(installationID)
	if err != nil {
		return err
	}

	comment := &gogithub.IssueComment{Body: gogithub.String(body)}
	if _, _, err := client.Issues.CreateComment(ctx, owner, repo, number, comment); err != nil {
		return errs.Wrapf(err, "post comment on %s/%s#%d", owner, repo, number)
	}
	return nil
}
