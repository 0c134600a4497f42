package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/mwantia/fieldsync/pkg/log"
	"github.com/mwantia/fieldsync/pkg/schema"
)

// ErrBrowserMissing is returned when no Chrome or Chromium binary is found.
var ErrBrowserMissing = errors.New("chromium not installed")

var browserNames = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// Host runs the renderer page in a headless browser and forwards every post
// the page makes through the binding function.
type Host struct {
	cfg     config.RendererServerConfig
	log     log.LoggerService
	timeout time.Duration

	ctx         context.Context
	taskCancel  context.CancelFunc
	allocCancel context.CancelFunc

	mutex    sync.Mutex
	pending  [][]byte
	notify   chan struct{}
	done     chan struct{}
	messages chan []byte
	wait     sync.WaitGroup
	once     sync.Once
}

// NewHost starts the browser, opens the renderer page and checks that the
// forms library is loaded.
func NewHost(ctx context.Context, cfg config.RendererServerConfig, logger log.LoggerService) (*Host, error) {
	path, err := lookupBrowser(cfg.ChromePath)
	if err != nil {
		return nil, &InitError{Reason: "browser", Err: err}
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	h := &Host{
		cfg:         cfg,
		log:         logger,
		timeout:     timeout,
		ctx:         taskCtx,
		taskCancel:  taskCancel,
		allocCancel: allocCancel,
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		messages:    make(chan []byte, buffer),
	}

	chromedp.ListenTarget(taskCtx, h.onEvent)

	// The first Run starts the browser and must not carry a timeout.
	if err := chromedp.Run(taskCtx); err != nil {
		h.cancel()
		return nil, &InitError{Reason: "start browser", Err: err}
	}

	h.wait.Add(1)
	go h.forward()

	runCtx, cancel := context.WithTimeout(taskCtx, timeout)
	defer cancel()

	var loaded bool
	err = chromedp.Run(runCtx,
		runtime.AddBinding(cfg.Binding),
		chromedp.Navigate(cfg.URL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`typeof Formio !== "undefined"`, &loaded),
	)
	if err != nil {
		_ = h.Close()
		return nil, &InitError{Reason: "load renderer page", Err: err}
	}
	if !loaded {
		_ = h.Close()
		return nil, &InitError{Reason: fmt.Sprintf("forms library missing on %s", cfg.URL)}
	}

	logger.Debug("Renderer loaded from '%s' using '%s'", cfg.URL, path)
	return h, nil
}

func lookupBrowser(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrBrowserMissing, configured)
		}
		return path, nil
	}
	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrBrowserMissing
}

// Inject renders doc and starts the discovery walk. Posts arrive on Messages.
func (h *Host) Inject(ctx context.Context, doc schema.Document) error {
	data, err := doc.JSON()
	if err != nil {
		return &InitError{Reason: "encode schema", Err: err}
	}

	runCtx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var started bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(bootstrapScript(h.cfg.Binding, data), &started)); err != nil {
		return &InitError{Reason: "inject schema", Err: err}
	}
	if !started {
		return &InitError{Reason: "renderer rejected the schema"}
	}
	return nil
}

func (h *Host) Messages() <-chan []byte {
	return h.messages
}

func (h *Host) Close() error {
	h.once.Do(func() {
		close(h.done)
		h.cancel()
		h.wait.Wait()
	})
	return nil
}

func (h *Host) cancel() {
	h.taskCancel()
	h.allocCancel()
}

func (h *Host) onEvent(ev any) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != h.cfg.Binding {
		return
	}

	h.mutex.Lock()
	h.pending = append(h.pending, []byte(called.Payload))
	h.mutex.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// forward moves posts from the event listener to Messages in arrival order.
// The listener itself must never block on a slow consumer.
func (h *Host) forward() {
	defer h.wait.Done()
	defer close(h.messages)

	for {
		select {
		case <-h.done:
			return
		case <-h.notify:
		}

		for {
			h.mutex.Lock()
			if len(h.pending) == 0 {
				h.mutex.Unlock()
				break
			}
			next := h.pending[0]
			h.pending = h.pending[1:]
			h.mutex.Unlock()

			select {
			case h.messages <- next:
			case <-h.done:
				return
			}
		}
	}
}

// bootstrapScript renders the schema into the page and reports discovery,
// change and terminal events through the binding as JSON posts.
func bootstrapScript(binding string, schemaJSON []byte) string {
	return fmt.Sprintf(bootstrapTemplate, strconv.Quote(binding), json.RawMessage(schemaJSON))
}

const bootstrapTemplate = `(function (binding, schema) {
  var post = function (msg) { window[binding](JSON.stringify(msg)); };
  var children = function (c) {
    var out = [];
    (c.components || []).forEach(function (x) { out.push(x); });
    (c.columns || []).forEach(function (col) { (col.components || []).forEach(function (x) { out.push(x); }); });
    (c.rows || []).forEach(function (row) {
      (row || []).forEach(function (cell) { ((cell && cell.components) || []).forEach(function (x) { out.push(x); }); });
    });
    return out;
  };
  var walk = function (list, visit) {
    (list || []).forEach(function (c) { if (visit(c) !== false) { walk(children(c), visit); } });
  };
  var firstFile = function (grid) {
    var found = null;
    walk(children(grid), function (c) { if (found) { return false; } if (c.type === "file") { found = c; return false; } });
    return found;
  };
  var required = function (c) { return !!(c.validate && c.validate.required); };
  var condition = function (c) {
    return c.conditional && c.conditional.when ? { show: c.conditional.show, when: c.conditional.when, eq: c.conditional.eq } : null;
  };

  var target = document.getElementById("formio");
  if (!target) { target = document.body.appendChild(document.createElement("div")); }

  Formio.createForm(target, schema).then(function (form) {
    walk(schema.components, function (c) {
      if (c.type !== "datagrid" && c.type !== "editgrid") { return; }
      var nested = firstFile(c);
      if (!nested) { return; }
      post({ action: "datagrid", gridKey: c.key, gridComponents: nested.key, label: nested.label || "",
        required: required(nested), multiple: !!nested.multiple, filePattern: nested.filePattern || "" });
    });
    walk(schema.components, function (c) {
      if (c.type !== "file") { return; }
      post({ action: "component", key: c.key, label: c.label || "", multiple: !!c.multiple,
        required: required(c), filePattern: c.filePattern || "", conditional: condition(c) });
    });
    form.on("change", function (ev) { if (ev && ev.data) { post({ action: "change", data: ev.data }); } });
    form.on("submit", function (submission) { post({ action: "submit", submission: submission }); });
    form.on("isDraft", function () { post({ action: "isDraft", submission: form.submission }); });
  }).catch(function (err) {
    post({ action: "error", message: String(err) });
  });
  return true;
})(%s, %s)`
