package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goonsradar/goonsradar/internal/query"
)

// ErrUnknownCommand is returned by Dispatch for lines that name no command.
var ErrUnknownCommand = errors.New("command: unknown command")

// Kind identifies one of the commands of the chat surface.
type Kind int

const (
	ListAll Kind = iota + 1
	ByMap
	Refresh
	Status
	Help
)

// keywords maps every accepted command word onto its Kind.
var keywords = map[string]Kind{
	"三狗":     ListAll,
	"goons":  ListAll,
	"三狗位置":   ListAll,
	"goons位置": ListAll,

	"三狗地图":   ByMap,
	"goons地图": ByMap,
	"地图三狗":   ByMap,

	"刷新三狗":   Refresh,
	"刷新goons": Refresh,
	"更新三狗":   Refresh,

	"三狗状态":   Status,
	"goons状态": Status,
	"状态三狗":   Status,

	"三狗帮助":   Help,
	"goons帮助": Help,
	"三狗说明":   Help,
}

// ordered holds the keywords longest first so that "三狗地图" wins over "三狗".
var ordered = func() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// Parse splits line into a command and its argument. A leading "/" is
// optional and the command word is matched case-insensitively. The word must
// be followed by whitespace or the end of the line, except for the map
// command whose argument may follow directly ("/三狗地图海关").
func Parse(line string) (Kind, string, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "/")
	lower := strings.ToLower(line)
	for _, k := range ordered {
		if !strings.HasPrefix(lower, k) {
			continue
		}
		rest := line[len(k):]
		if rest != "" && !startsWithSpace(rest) && keywords[k] != ByMap {
			continue
		}
		return keywords[k], strings.TrimSpace(rest), true
	}
	return 0, "", false
}

func startsWithSpace(s string) bool {
	r := []rune(s)
	return len(r) > 0 && (r[0] == ' ' || r[0] == '\t' || r[0] == '　')
}

// Dispatcher maps text commands onto the query engine.
type Dispatcher struct {
	engine *query.Engine
	now    func() time.Time
}

// New returns a Dispatcher serving e.
func New(e *query.Engine) *Dispatcher {
	return &Dispatcher{engine: e, now: time.Now}
}

// Dispatch runs the command in line and returns the reply text. Data
// problems (no snapshot, failed refresh, unknown map) are reported in the
// reply; only ErrUnknownCommand is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, line string) (string, error) {
	kind, arg, ok := Parse(line)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, strings.TrimSpace(line))
	}

	switch kind {
	case ListAll:
		ov, err := d.engine.ListAll(ctx)
		if err != nil {
			return query.RenderNoData(err, d.now()), nil
		}
		return query.RenderOverview(ov), nil

	case ByMap:
		if arg == "" {
			return "❌ 请提供要查询的地图名称\n例如：/三狗地图 海关", nil
		}
		rep, err := d.engine.ByMap(ctx, arg)
		if err != nil {
			return query.RenderNoData(err, d.now()), nil
		}
		return query.RenderMap(rep), nil

	case Refresh:
		rr, err := d.engine.Refresh(ctx)
		if err != nil {
			st := d.engine.Status(ctx)
			return query.RenderRefreshFailed(st.Stats.LastErrorAt, d.now()), nil
		}
		return query.RenderRefresh(rr), nil

	case Status:
		return query.RenderStatus(d.engine.Status(ctx)), nil

	default:
		return query.RenderHelp(d.engine.Aliases(), d.engine.IntervalSeconds()), nil
	}
}
