package queries

const (
	// Inserts only when the sender is a participant and bumps the conversation in the
	// same statement. No row returned means the sender is not a participant.
	QueryAppendMessage = `
		WITH ins AS (
			INSERT INTO messages (conversation_id, sender_id, content, message_type)
			SELECT $1::uuid, $2::uuid, $3::text, $4::text
			WHERE EXISTS (
				SELECT 1 FROM conversation_participants
				WHERE conversation_id = $1 AND user_id = $2
			)
			RETURNING id, created_at
		), touch AS (
			UPDATE conversations
			SET updated_at = now()
			WHERE id = $1 AND EXISTS (SELECT 1 FROM ins)
		)
		SELECT id, created_at FROM ins;
	`
	QueryListMessages = `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.message_type, m.created_at,
		       COALESCE(p.full_name, ''), COALESCE(p.email, '')
		FROM messages AS m
		LEFT JOIN profiles AS p ON p.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC;
	`
	QueryListMessagesBefore = `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.message_type, m.created_at,
		       COALESCE(p.full_name, ''), COALESCE(p.email, '')
		FROM messages AS m
		LEFT JOIN profiles AS p ON p.id = m.sender_id
		WHERE m.conversation_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR m.created_at < $2
		    OR (m.created_at = $2 AND m.id < $3::uuid)
		  )
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $4;
	`
	QueryUnreadByConversation = `
		SELECT cp.conversation_id, COUNT(m.id)
		FROM conversation_participants AS cp
		LEFT JOIN messages AS m
		       ON m.conversation_id = cp.conversation_id
		      AND m.sender_id <> cp.user_id
		      AND m.created_at > COALESCE(cp.last_read_at, 'epoch'::timestamptz)
		WHERE cp.user_id = $1
		GROUP BY cp.conversation_id;
	`
)
