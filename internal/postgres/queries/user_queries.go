package queries

const (
	QueryGetUserSummary = `
		SELECT id, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(role::text, 'member')
		FROM profiles
		WHERE id = $1;
	`
	// Admins plus everyone sharing a team with the user.
	QueryRecipientScope = `
		SELECT id FROM profiles WHERE role = 'admin'
		UNION
		SELECT tm2.user_id
		FROM team_members AS tm1
		JOIN team_members AS tm2 ON tm2.team_id = tm1.team_id
		WHERE tm1.user_id = $1;
	`
	QuerySearchUsers = `
		SELECT id, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(role::text, 'member')
		FROM profiles
		WHERE id <> $1
		  AND (full_name ILIKE $2 OR email ILIKE $2)
		  AND ($3::uuid[] IS NULL OR id = ANY($3::uuid[]))
		ORDER BY full_name NULLS LAST, id
		LIMIT $4;
	`
)
