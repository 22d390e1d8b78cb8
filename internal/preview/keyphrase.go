package preview

// Controller owns the committed keyphrase. It only reports a change when the
// input value differs from the last commit.
type Controller struct {
	committed string
}

// NewController returns a controller with an empty committed keyphrase.
func NewController() *Controller {
	return &Controller{}
}

// Keyphrase returns the last committed value.
func (c *Controller) Keyphrase() string {
	return c.committed
}

// KeyUp handles a key-release with the input's current value.
func (c *Controller) KeyUp(value string) (KeyphraseChange, bool) {
	if value == c.committed {
		return KeyphraseChange{}, false
	}
	c.committed = value
	return KeyphraseChange{Keyphrase: value}, true
}

// Focus reports whether focusing the input should reset the active item to
// the default panel. That is the case whenever a keyphrase is present.
func (c *Controller) Focus() bool {
	return len(c.committed) > 0
}
