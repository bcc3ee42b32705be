package repository

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern turns a free-text query into a substring pattern for
// LIKE/ILIKE ... ESCAPE '\'. Wildcards typed by the user are matched literally.
func LikePattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}
