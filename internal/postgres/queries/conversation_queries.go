package queries

const (
	QueryCreateConversation = `
		INSERT INTO conversations (name, type)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at;
	`
	QueryAddCreator = `
		INSERT INTO conversation_participants (conversation_id, user_id, role)
		VALUES ($1, $2, 'admin');
	`
	QueryAddMembers = `
		INSERT INTO conversation_participants (conversation_id, user_id, role)
		SELECT $1::uuid, u, 'member'
		FROM unnest($2::uuid[]) AS u
		ON CONFLICT (conversation_id, user_id) DO NOTHING;
	`
	QueryGetConversation = `
		SELECT id, name, type, created_at, updated_at
		FROM conversations
		WHERE id = $1;
	`
	QueryFindDirectConversation = `
		SELECT c.id, c.name, c.type, c.created_at, c.updated_at
		FROM conversations AS c
		WHERE c.type = 'direct'
		  AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = $1)
		  AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.user_id = $2)
		  AND (SELECT COUNT(*) FROM conversation_participants p WHERE p.conversation_id = c.id) = 2
		ORDER BY c.created_at ASC
		LIMIT 1;
	`
	QueryListUserConversations = `
		SELECT c.id, c.name, c.type, c.created_at, c.updated_at,
		       lm.id, lm.sender_id, lm.content, lm.message_type, lm.created_at,
		       (SELECT COUNT(*)
		          FROM messages m
		         WHERE m.conversation_id = c.id
		           AND m.sender_id <> cp.user_id
		           AND m.created_at > COALESCE(cp.last_read_at, 'epoch'::timestamptz)) AS unread
		FROM conversation_participants AS cp
		JOIN conversations AS c ON c.id = cp.conversation_id
		LEFT JOIN LATERAL (
		    SELECT id, sender_id, content, message_type, created_at
		    FROM messages
		    WHERE conversation_id = c.id
		    ORDER BY created_at DESC, id DESC
		    LIMIT 1
		) AS lm ON TRUE
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC;
	`
)
