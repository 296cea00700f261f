// Package device implements the on-device automation collaborator on top
// of the Android Debug Bridge CLI.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/config"
)

// androidKeyBack is the AOSP keycode for the back button.
const androidKeyBack = "4"

// wmSizeRegex extracts "WxH" from `wm size` output.
var wmSizeRegex = regexp.MustCompile(`(\d+)x(\d+)`)

// focusRegex extracts the focused component from `dumpsys window` output.
var focusRegex = regexp.MustCompile(`mCurrentFocus=.*\s([\w.]+/[\w.$]+)}`)

// ADBDriver executes device commands through the adb binary. All calls are
// synchronous and honor the caller's context deadline on top of the
// configured per-command timeouts.
type ADBDriver struct {
	cfg    config.DeviceConfig
	serial string
	logger *zap.Logger

	mu     sync.Mutex
	width  int
	height int
}

var _ schemas.DeviceDriver = (*ADBDriver)(nil)

// NewADBDriver builds a driver bound to one device serial.
func NewADBDriver(cfg config.DeviceConfig, serial string, logger *zap.Logger) *ADBDriver {
	return &ADBDriver{
		cfg:    cfg,
		serial: serial,
		logger: logger.Named("device").With(zap.String("serial", serial)),
	}
}

// Handshake verifies the device is attached and caches its screen size.
func (d *ADBDriver) Handshake(ctx context.Context) error {
	out, err := d.adb(ctx, d.cfg.CommandTimeout, "get-state")
	if err != nil {
		return fmt.Errorf("adb get-state: %w", err)
	}
	if state := strings.TrimSpace(string(out)); state != "device" {
		return fmt.Errorf("device %s is not ready (state %q)", d.serial, state)
	}

	out, err = d.adb(ctx, d.cfg.CommandTimeout, "shell", "wm", "size")
	if err != nil {
		return fmt.Errorf("adb wm size: %w", err)
	}
	m := wmSizeRegex.FindSubmatch(out)
	if m == nil {
		return fmt.Errorf("cannot parse screen size from %q", strings.TrimSpace(string(out)))
	}

	d.mu.Lock()
	d.width, _ = strconv.Atoi(string(m[1]))
	d.height, _ = strconv.Atoi(string(m[2]))
	d.mu.Unlock()

	d.logger.Info("Device handshake complete", zap.Int("width", d.width), zap.Int("height", d.height))
	return nil
}

// CaptureScreen returns the visible screen as PNG bytes.
func (d *ADBDriver) CaptureScreen(ctx context.Context) ([]byte, error) {
	out, err := d.adb(ctx, d.cfg.CaptureTimeout, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, fmt.Errorf("adb screencap: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("screencap produced no data")
	}
	return out, nil
}

// Execute performs one concrete device command.
func (d *ADBDriver) Execute(ctx context.Context, cmd schemas.DeviceCommand) error {
	switch cmd.Kind {
	case schemas.CommandTap:
		return d.shellInput(ctx, "tap", itoa(cmd.X), itoa(cmd.Y))

	case schemas.CommandLongPress:
		// A zero-displacement swipe with a hold duration is a long press.
		hold := itoa(d.cfg.LongPressMs)
		return d.shellInput(ctx, "swipe", itoa(cmd.X), itoa(cmd.Y), itoa(cmd.X), itoa(cmd.Y), hold)

	case schemas.CommandInput:
		if err := d.shellInput(ctx, "tap", itoa(cmd.X), itoa(cmd.Y)); err != nil {
			return err
		}
		return d.shellInput(ctx, "text", escapeText(cmd.Text))

	case schemas.CommandSwipe:
		x0, y0, x1, y1, err := d.swipeCoords(cmd.Direction)
		if err != nil {
			return err
		}
		return d.shellInput(ctx, "swipe", itoa(x0), itoa(y0), itoa(x1), itoa(y1), itoa(d.cfg.SwipeMs))

	case schemas.CommandBack:
		return d.shellInput(ctx, "keyevent", androidKeyBack)

	default:
		return fmt.Errorf("unsupported device command kind %q", cmd.Kind)
	}
}

// CurrentActivity returns the focused component name, best effort.
func (d *ADBDriver) CurrentActivity(ctx context.Context) (string, error) {
	out, err := d.adb(ctx, d.cfg.CommandTimeout, "shell", "dumpsys", "window", "windows")
	if err != nil {
		return "", fmt.Errorf("adb dumpsys window: %w", err)
	}
	if m := focusRegex.FindSubmatch(out); m != nil {
		return string(m[1]), nil
	}
	return "", fmt.Errorf("no focused activity found")
}

// LaunchApp brings the target package to the foreground.
func (d *ADBDriver) LaunchApp(ctx context.Context, pkg, activity string) error {
	var args []string
	if activity != "" {
		args = []string{"shell", "am", "start", "-n", pkg + "/" + activity}
	} else {
		args = []string{"shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1"}
	}
	if _, err := d.adb(ctx, d.cfg.CommandTimeout, args...); err != nil {
		return fmt.Errorf("launching %s: %w", pkg, err)
	}
	return nil
}

// swipeCoords maps a direction onto screen-relative gesture endpoints.
func (d *ADBDriver) swipeCoords(dir schemas.SwipeDirection) (x0, y0, x1, y1 int, err error) {
	d.mu.Lock()
	w, h := d.width, d.height
	d.mu.Unlock()
	if w == 0 || h == 0 {
		return 0, 0, 0, 0, fmt.Errorf("screen size unknown; handshake not performed")
	}

	switch dir {
	case schemas.SwipeUp:
		return w / 2, h * 3 / 4, w / 2, h / 4, nil
	case schemas.SwipeDown:
		return w / 2, h / 4, w / 2, h * 3 / 4, nil
	case schemas.SwipeLeft:
		return w * 3 / 4, h / 2, w / 4, h / 2, nil
	case schemas.SwipeRight:
		return w / 4, h / 2, w * 3 / 4, h / 2, nil
	default:
		return 0, 0, 0, 0, fmt.Errorf("unknown swipe direction %q", dir)
	}
}

func (d *ADBDriver) shellInput(ctx context.Context, args ...string) error {
	full := append([]string{"shell", "input"}, args...)
	if _, err := d.adb(ctx, d.cfg.CommandTimeout, full...); err != nil {
		return fmt.Errorf("adb input %s: %w", args[0], err)
	}
	return nil
}

// adb runs one adb invocation against the bound serial.
func (d *ADBDriver) adb(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := args
	if d.serial != "" {
		full = append([]string{"-s", d.serial}, args...)
	}
	cmd := exec.CommandContext(cmdCtx, d.cfg.ADBPath, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s %s: %s", d.cfg.ADBPath, strings.Join(args, " "), msg)
	}
	return stdout.Bytes(), nil
}

// escapeText prepares free text for `input text`: spaces become %s and
// shell metacharacters are stripped.
func escapeText(s string) string {
	replacer := strings.NewReplacer(
		" ", "%s",
		"&", "", "|", "", ";", "", "<", "", ">", "",
		"(", "", ")", "", "'", "", "\"", "", "`", "",
	)
	return replacer.Replace(s)
}

func itoa(n int) string { return strconv.Itoa(n) }
