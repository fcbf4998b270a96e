package model

import "time"

// Project 是一次聚合运行的输入单元。
// Name 同时是缓存键和克隆后的目录名，假设在同一账号下唯一。
type Project struct {
	CloneURL string    `json:"clone_url"`
	PushedAt time.Time `json:"pushed_at"`
	Name     string    `json:"name"`
}
