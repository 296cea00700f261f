package schemas

// -- Action Schemas --

// ActionKind categorizes the actions the AI model can recommend.
type ActionKind string

const (
	ActionTap       ActionKind = "TAP"
	ActionLongPress ActionKind = "LONG_PRESS"
	ActionInput     ActionKind = "INPUT"
	ActionSwipe     ActionKind = "SWIPE"
	ActionBack      ActionKind = "BACK"
	// ActionConclude signals that the exploration objective is complete.
	ActionConclude ActionKind = "CONCLUDE"
)

// SwipeDirection names the four scroll gestures the device driver supports.
type SwipeDirection string

const (
	SwipeUp    SwipeDirection = "up"
	SwipeDown  SwipeDirection = "down"
	SwipeLeft  SwipeDirection = "left"
	SwipeRight SwipeDirection = "right"
)

// AIAction is a single action recommended by the model. A target is
// referenced either through Box (raw coordinates) or Label (an id from the
// current cycle's label map); the translator resolves whichever is present,
// preferring the box. A decision cycle yields an ordered sequence of these,
// executed until one invalidates the remaining plan.
type AIAction struct {
	Kind      ActionKind     `json:"kind"`
	Rationale string         `json:"rationale"`
	Box       *BoundingBox   `json:"box,omitempty"`
	Label     int            `json:"label,omitempty"`
	Text      string         `json:"text,omitempty"`
	Direction SwipeDirection `json:"direction,omitempty"`
}

// DeviceCommandKind categorizes concrete device actions.
type DeviceCommandKind string

const (
	CommandTap       DeviceCommandKind = "tap"
	CommandLongPress DeviceCommandKind = "long_press"
	CommandInput     DeviceCommandKind = "input"
	CommandSwipe     DeviceCommandKind = "swipe"
	CommandBack      DeviceCommandKind = "back"
)

// DeviceCommand is a fully resolved action with absolute coordinates,
// ready for the device automation driver. Producing one has no side
// effects; execution is delegated to the driver.
type DeviceCommand struct {
	Kind      DeviceCommandKind `json:"kind"`
	X         int               `json:"x,omitempty"`
	Y         int               `json:"y,omitempty"`
	Text      string            `json:"text,omitempty"`
	Direction SwipeDirection    `json:"direction,omitempty"`
}
