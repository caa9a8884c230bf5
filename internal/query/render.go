package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goonsradar/goonsradar/internal/alias"
	"github.com/goonsradar/goonsradar/internal/reconcile"
)

const (
	shortLayout = "01-02 15:04:05"
	clockLayout = "15:04:05"

	placeholder = "暂无数据"
)

// RenderOverview formats the latest positions of both modes.
func RenderOverview(o *Overview) string {
	var b strings.Builder
	b.WriteString("🐺 Goons小队（三狗）最新位置：\n\n")

	b.WriteString("🎮 PVP模式：\n")
	writeSightings(&b, o.PVP)
	b.WriteString("\n💀 PVE模式：\n")
	writeSightings(&b, o.PVE)

	fmt.Fprintf(&b, "\n⏰ 数据更新时间：%s（%d秒前）", o.FetchedAt.Format(shortLayout), o.AgeSeconds)
	fmt.Fprintf(&b, "\n🔄 自动刷新：每%d秒", o.IntervalSeconds)
	if o.Source != "" {
		fmt.Fprintf(&b, "\n⚠️ 数据来源：%s", o.Source)
	}
	return b.String()
}

func writeSightings(b *strings.Builder, ss []reconcile.Sighting) {
	if len(ss) == 0 {
		b.WriteString("  " + placeholder + "\n")
		return
	}
	for _, s := range ss {
		fmt.Fprintf(b, "  • %s - %s\n", s.Map, formatTimestamp(s.Time))
	}
}

// RenderMap formats a per-map report, including the discovery list when the
// map was not found.
func RenderMap(r *MapReport) string {
	var b strings.Builder
	if !r.Found {
		if len(r.Available) == 0 {
			fmt.Fprintf(&b, "❌ 未找到地图 '%s' 的记录，且当前无可用数据", r.Query)
			return b.String()
		}
		fmt.Fprintf(&b, "❌ 未找到地图 '%s' 的记录\n\n", r.Query)
		b.WriteString("📋 当前数据中可用的地图：\n")
		for _, m := range r.Available {
			fmt.Fprintf(&b, "  • %s\n", m)
		}
		if len(r.Suggestions) > 0 {
			fmt.Fprintf(&b, "\n🔍 你是不是想找：%s\n", strings.Join(r.Suggestions, "、"))
		}
		b.WriteString("\n💡 提示：可以使用 /三狗 查看所有最新位置")
		return b.String()
	}

	fmt.Fprintf(&b, "🗺️  地图：%s\n\n", r.Map)
	writeRecords(&b, "🎮 PVP模式", r.PVP)
	b.WriteString("\n")
	writeRecords(&b, "💀 PVE模式", r.PVE)

	fmt.Fprintf(&b, "\n📊 统计： PVP记录 %d 条， PVE记录 %d 条", r.PVP.Total, r.PVE.Total)
	fmt.Fprintf(&b, "\n⏰ 数据更新时间：%s（%d秒前）", r.FetchedAt.Format(clockLayout), r.AgeSeconds)
	return b.String()
}

func writeRecords(b *strings.Builder, title string, m ModeRecords) {
	if m.Total == 0 {
		b.WriteString(title + "：暂无记录\n")
		return
	}
	b.WriteString(title + "最新记录：\n")
	for _, ts := range m.Records {
		fmt.Fprintf(b, "  • %s\n", formatTimestamp(ts))
	}
	if m.More > 0 {
		fmt.Fprintf(b, "  ... 还有 %d 条更早记录\n", m.More)
	}
}

// RenderStatus formats operational status.
func RenderStatus(s *StatusReport) string {
	var b strings.Builder
	b.WriteString("📊 三狗位置查询状态：\n\n")
	fmt.Fprintf(&b, "🔄 自动刷新间隔：%d秒\n", s.IntervalSeconds)

	if s.HasData {
		fmt.Fprintf(&b, "📁 数据记录：PVP %d 条，PVE %d 条\n", s.PVPRecords, s.PVERecords)
		fmt.Fprintf(&b, "⏰ 最后更新：%s\n", s.LastUpdate.Format(reconcile.TimeLayout))
		fmt.Fprintf(&b, "   （%d秒前）\n", s.AgeSeconds)
	} else {
		b.WriteString("📁 数据记录：" + placeholder + "\n")
		b.WriteString("⏰ 最后更新：从未成功获取\n")
	}

	b.WriteString("📈 统计信息：\n")
	fmt.Fprintf(&b, "  • 成功获取：%d 次\n", s.Stats.SuccessCount)
	fmt.Fprintf(&b, "  • 失败次数：%d 次\n", s.Stats.ErrorCount)
	fmt.Fprintf(&b, "  • 近期成功率：%.0f%%\n", s.Stats.RecentSuccessPct)
	if !s.Stats.LastSuccessAt.IsZero() {
		fmt.Fprintf(&b, "  • 最后成功：%s前\n", formatDuration(s.Now.Sub(s.Stats.LastSuccessAt)))
	}
	if !s.Stats.LastErrorAt.IsZero() {
		fmt.Fprintf(&b, "  • 最后错误：%s前（%s）\n", formatDuration(s.Now.Sub(s.Stats.LastErrorAt)), s.Stats.LastErrorKind)
	}

	if s.Running {
		fmt.Fprintf(&b, "✅ 自动刷新：运行中（%s）\n", s.State)
	} else {
		b.WriteString("❌ 自动刷新：已停止\n")
	}
	fmt.Fprintf(&b, "🗺️  地图别名：已加载 %d 个（%s）\n", s.Aliases, s.AliasSource)
	b.WriteString("\n💡 使用 /三狗帮助 查看完整命令")
	return b.String()
}

// RenderRefresh formats a successful forced refresh.
func RenderRefresh(r *RefreshReport) string {
	var b strings.Builder
	b.WriteString("✅ 三狗数据已刷新！\n")
	fmt.Fprintf(&b, "📊 数据统计：成功获取 %d 次\n", r.SuccessCount)
	fmt.Fprintf(&b, "⏰ 更新时间：%s（%d秒前）\n", r.FetchedAt.Format(clockLayout), r.AgeSeconds)
	b.WriteString("🔄 可以使用 /三狗 查看最新位置")
	return b.String()
}

// RenderRefreshFailed formats a failed forced refresh. lastErrorAt may be
// zero when the failure time is unknown.
func RenderRefreshFailed(lastErrorAt, now time.Time) string {
	if lastErrorAt.IsZero() {
		return "❌ 刷新数据失败，请稍后再试"
	}
	return fmt.Sprintf("❌ 刷新数据失败（最近一次错误发生在%s前）\n请稍后再试", formatDuration(now.Sub(lastErrorAt)))
}

// RenderNoData formats ErrNoData for users, distinct from "map not found".
func RenderNoData(err error, now time.Time) string {
	var nd *NoDataError
	if errors.As(err, &nd) && !nd.LastErrorAt.IsZero() {
		return fmt.Sprintf("❌ 获取三狗位置数据失败（最近一次错误发生在%s前）\n请稍后再试或使用 /刷新三狗",
			formatDuration(now.Sub(nd.LastErrorAt)))
	}
	return "❌ 获取三狗位置数据失败，请稍后再试"
}

// RenderHelp lists the commands and the aliases of every map.
func RenderHelp(entries []alias.Entry, intervalSeconds int64) string {
	var b strings.Builder
	b.WriteString("🐺 Goons小队（三狗）位置查询帮助：\n\n")
	b.WriteString("基础命令：\n")
	b.WriteString("/三狗 或 /goons - 查询三狗的最新位置\n")
	b.WriteString("/三狗地图 [地图名] - 查询指定地图的三狗记录\n")
	fmt.Fprintf(&b, "/刷新三狗 - 强制刷新数据（自动刷新每%d秒一次）\n", intervalSeconds)
	b.WriteString("/三狗状态 - 查看运行状态\n")
	b.WriteString("/三狗帮助 - 显示此帮助信息\n\n")

	b.WriteString("示例：\n/三狗\n/三狗地图 海关\n/三狗地图 customs\n/goons地图 woods\n/刷新三狗\n/三狗状态\n\n")

	b.WriteString("支持的地图别名：\n")
	for _, e := range entries {
		if len(e.Aliases) == 0 {
			b.WriteString(e.DisplayName + "\n")
			continue
		}
		fmt.Fprintf(&b, "%s - %s\n", e.DisplayName, strings.Join(e.Aliases, ", "))
	}
	b.WriteString("\n注意：数据来源于 eftarkov.com，更新可能有延迟\n")
	b.WriteString("地图别名可以在 maps.txt 文件中自定义")
	return b.String()
}

// formatTimestamp shortens an upstream timestamp to "01-02 15:04:05". A
// value that does not parse is shown unchanged.
func formatTimestamp(ts string) string {
	t, err := time.Parse(reconcile.TimeLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format(shortLayout)
}

func formatDuration(d time.Duration) string {
	sec := int64(d / time.Second)
	if sec < 0 {
		sec = 0
	}
	switch {
	case sec < 60:
		return fmt.Sprintf("%d秒", sec)
	case sec < 3600:
		return fmt.Sprintf("%d分钟", sec/60)
	default:
		return fmt.Sprintf("%d小时%d分钟", sec/3600, (sec%3600)/60)
	}
}
