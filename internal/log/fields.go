// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldUserID    = "user_id"
	FieldUsername  = "username"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldRemoteAddr = "remote_addr"
	FieldDuration   = "duration_ms"

	// Mail fields
	FieldMessageID  = "message_id"
	FieldRecipients = "recipients"

	// Asset pipeline fields
	FieldPattern    = "pattern"
	FieldConfigPath = "config_path"
	FieldOutputPath = "output_path"
)
