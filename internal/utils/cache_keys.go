package utils

import "strconv"

func BuildPostsFeedCacheKey(limit int) string {
	return "posts:feed:v1:limit=" + strconv.Itoa(limit)
}

func BuildPostCacheKey(id string) string {
	return "posts:id:v1:" + id
}
