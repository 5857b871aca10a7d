package mobyclient

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// Client wraps the real Docker engine client, translating its wire
// types into the narrow EngineClient surface.
type Client struct {
	cli *dockerclient.Client
}

// New builds a Client. host overrides DOCKER_HOST/the platform default
// endpoint when non-empty; otherwise the SDK's own FromEnv resolution
// applies.
func New(host string) (*Client, error) {
	opts := []dockerclient.Opt{dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, dockerclient.WithHost(host))
	}
	cli, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

// classifyErr maps a Docker SDK error onto the narrow taxonomy the core
// depends on: NotFoundError for a 404, ServerError for a 5xx, and the
// original error unchanged for anything else (parameter errors,
// transport failures, etc., which the supervisor retries as transient).
func classifyErr(id string, err error) error {
	if errdefs.IsNotFound(err) {
		return &NotFoundError{Id: id}
	}
	if code := errdefs.GetHTTPErrorStatusCode(err); code >= 500 {
		return &ServerError{Id: id, StatusCode: code}
	}
	return err
}

func (c *Client) Inspect(ctx context.Context, id string) (InspectResult, error) {
	info, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return InspectResult{}, classifyErr(id, err)
	}

	var hostname, image string
	var tty bool
	var labels map[string]string
	if info.Config != nil {
		hostname = info.Config.Hostname
		image = info.Config.Image
		tty = info.Config.Tty
		labels = info.Config.Labels
	}

	running := info.State != nil && info.State.Status == "running"

	return InspectResult{
		Id:       info.ID,
		Name:     info.Name,
		Hostname: hostname,
		Image:    image,
		ImageId:  info.Image,
		Tty:      tty,
		Labels:   labels,
		Running:  running,
	}, nil
}

func (c *Client) Logs(ctx context.Context, id string, query LogsQuery) (io.ReadCloser, error) {
	opts := container.LogsOptions{
		Since:      query.Since,
		Timestamps: query.Timestamps,
		Follow:     query.Follow,
		ShowStdout: query.Stdout,
		ShowStderr: query.Stderr,
	}
	rc, err := c.cli.ContainerLogs(ctx, id, opts)
	if err != nil {
		return nil, classifyErr(id, err)
	}
	return rc, nil
}

func (c *Client) Events(ctx context.Context, since time.Time) (<-chan Event, <-chan error) {
	out := make(chan Event)
	outErr := make(chan error, 1)

	filterArgs := filters.NewArgs()
	filterArgs.Add("type", "container")

	rawCh, rawErrCh := c.cli.Events(ctx, events.ListOptions{
		Filters: filterArgs,
		Since:   since.Format(time.RFC3339Nano),
	})

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-rawErrCh:
				if !ok {
					return
				}
				select {
				case outErr <- err:
				default:
				}
				return
			case msg, ok := <-rawCh:
				if !ok {
					return
				}
				select {
				case out <- Event{
					Type:   string(msg.Type),
					Action: string(msg.Action),
					Id:     msg.Actor.ID,
					Time:   time.Unix(0, msg.TimeNano),
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, outErr
}

func (c *Client) List(ctx context.Context) ([]ContainerSummary, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: false})
	if err != nil {
		return nil, err
	}
	out := make([]ContainerSummary, 0, len(containers))
	for _, cc := range containers {
		out = append(out, ContainerSummary{Id: cc.ID})
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}
