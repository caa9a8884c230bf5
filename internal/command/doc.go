// Package command is the text surface of goonsradar: it parses chat-style
// lines such as "/三狗地图 海关" and maps each command onto one query.Engine
// call, returning the rendered reply.
//
// Command words and their aliases:
//
//	三狗 goons 三狗位置 goons位置     list all maps
//	三狗地图 goons地图 地图三狗 <map>  one map
//	刷新三狗 刷新goons 更新三狗        force refresh
//	三狗状态 goons状态 状态三狗        status
//	三狗帮助 goons帮助 三狗说明        help
package command
