package device

import (
	"time"

	"github.com/mcudev/go-ionctl/usb"
)

// DefaultRequestTimeout is the deadline applied to requests that do not set
// one explicitly.
const DefaultRequestTimeout = 30 * time.Second

// config holds the device handle configuration.
type config struct {
	logger         Logger
	maxActive      int // 0 = discover from the first BUSY
	policy         PollingPolicy
	requestTimeout time.Duration
	deviceType     usb.DeviceType
	dfuMode        bool
	queryVersion   bool
	onOpen         func()
	onClosed       func()
}

func defaultConfig() config {
	return config{
		logger:         nopLogger{},
		policy:         DefaultPollingPolicy,
		requestTimeout: DefaultRequestTimeout,
		queryVersion:   true,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*config)

// WithLogger sets a logger for device operations.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxActive caps the number of concurrently active requests instead of
// discovering the cap from the first BUSY reply.
func WithMaxActive(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxActive = n
		}
	}
}

// WithDefaultPollingPolicy sets the polling policy used by requests that do
// not supply their own.
func WithDefaultPollingPolicy(p PollingPolicy) Option {
	return func(c *config) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithDefaultTimeout sets the deadline used by requests that do not supply
// their own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *config) {
		c.requestTimeout = d
	}
}

// WithDeviceType tags the handle with the device type it was enumerated as.
func WithDeviceType(t usb.DeviceType) Option {
	return func(c *config) {
		c.deviceType = t
	}
}

// WithDFUMode marks the handle as a bootloader-mode device. DFU-mode devices
// do not speak the service protocol, so the version query during Open is
// skipped.
func WithDFUMode() Option {
	return func(c *config) {
		c.dfuMode = true
	}
}

// WithoutVersionQuery disables the firmware-version query during Open.
func WithoutVersionQuery() Option {
	return func(c *config) {
		c.queryVersion = false
	}
}

// WithOpenCallback registers a callback invoked once per open cycle, after
// the handle reaches the open state.
func WithOpenCallback(f func()) Option {
	return func(c *config) {
		c.onOpen = f
	}
}

// WithClosedCallback registers a callback invoked once per open cycle, after
// the USB device has been closed.
func WithClosedCallback(f func()) Option {
	return func(c *config) {
		c.onClosed = f
	}
}

// requestConfig holds per-request settings.
type requestConfig struct {
	timeout   time.Duration
	policy    PollingPolicy
	rawResult bool
	isText    bool
}

// RequestOption is a functional option for a single request.
type RequestOption func(*requestConfig)

// WithTimeout sets the request deadline. A non-positive timeout rejects the
// request without issuing any USB transfer.
func WithTimeout(d time.Duration) RequestOption {
	return func(c *requestConfig) {
		c.timeout = d
	}
}

// WithPollingPolicy sets the CHECK polling policy for this request.
func WithPollingPolicy(p PollingPolicy) RequestOption {
	return func(c *requestConfig) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithRawResult returns the reply even when its result code is non-zero,
// instead of failing the call with a RequestError.
func WithRawResult() RequestOption {
	return func(c *requestConfig) {
		c.rawResult = true
	}
}

// closeConfig holds settings for Close.
type closeConfig struct {
	processPending bool
	timeout        time.Duration
}

// CloseOption is a functional option for Close.
type CloseOption func(*closeConfig)

// WithDiscardPending rejects all unfinished requests immediately instead of
// letting them run to completion before the device closes.
func WithDiscardPending() CloseOption {
	return func(c *closeConfig) {
		c.processPending = false
	}
}

// WithCloseTimeout bounds how long Close waits for unfinished requests; on
// expiry they are rejected and the close proceeds.
func WithCloseTimeout(d time.Duration) CloseOption {
	return func(c *closeConfig) {
		c.timeout = d
	}
}
