package domain

// DragSession tracks the item being dragged and the hovered drop target.
// The zero value means no drag is active. It is never persisted.
type DragSession struct {
	ActiveItemID string `json:"active_item_id,omitempty"`
	OverTargetID string `json:"over_target_id,omitempty"`
}

// Active reports whether an item is currently picked up.
func (s DragSession) Active() bool {
	return s.ActiveItemID != ""
}
