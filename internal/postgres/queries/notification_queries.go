package queries

const (
	QueryNotificationsTableExists = `SELECT to_regclass('notifications') IS NOT NULL;`

	QueryCreateNotification = `
		INSERT INTO notifications (user_id, title, message, type, link, sender_id, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, created_at;
	`
	QueryCreateNotificationsBulk = `
		INSERT INTO notifications (user_id, title, message, type, link, sender_id, is_read)
		SELECT u, $2::text, $3::text, $4::text, $5::text, $6::uuid, FALSE
		FROM unnest($1::uuid[]) AS u;
	`
	QueryCountUnreadNotifications = `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE;
	`
	QueryListNotifications = `
		SELECT id, user_id, title, COALESCE(message, ''), COALESCE(type, 'info'), link, sender_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2;
	`
	// Returns the notification together with its state before the update and the
	// owner's display name. No row means it does not exist or belongs to someone else.
	QueryMarkNotificationRead = `
		WITH prev AS (
			SELECT id, is_read
			FROM notifications
			WHERE id = $1 AND user_id = $2
			FOR UPDATE
		)
		UPDATE notifications AS n
		SET is_read = TRUE
		FROM prev
		WHERE n.id = prev.id
		RETURNING n.id, n.user_id, n.title, COALESCE(n.message, ''), COALESCE(n.type, 'info'),
		          n.link, n.sender_id, n.created_at, NOT prev.is_read,
		          COALESCE((SELECT full_name FROM profiles WHERE id = n.user_id), '');
	`

	QueryDeleteNotification = `
		DELETE FROM notifications
		WHERE id = $1 AND user_id = $2;
	`

	QueryMarkAllNotificationsRead = `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE;
	`
)
