package queries

const (
	QueryParticipantExists = `
		SELECT EXISTS(
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		);
	`
	QueryListParticipants = `
		SELECT cp.conversation_id, cp.user_id, cp.role, cp.joined_at, cp.last_read_at,
		       COALESCE(p.full_name, ''), COALESCE(p.email, ''), COALESCE(p.role::text, 'member')
		FROM conversation_participants AS cp
		LEFT JOIN profiles AS p ON p.id = cp.user_id
		WHERE cp.conversation_id = $1
		ORDER BY cp.joined_at ASC, cp.user_id ASC;
	`
	// The watermark never moves backwards and always uses the database clock.
	QueryAdvanceWatermark = `
		UPDATE conversation_participants
		SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), now())
		WHERE conversation_id = $1 AND user_id = $2
		RETURNING last_read_at;
	`
)
