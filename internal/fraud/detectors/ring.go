package detectors

import (
	"strings"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

// maxActorsPerLink ignores links (carrier NAT, public Wi-Fi) shared so widely
// that pairing every actor behind them would be quadratic noise.
const maxActorsPerLink = 50

// unionFind is a disjoint-set forest over actor indexes with path halving
// and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}

func ringSeverity(size int) models.Severity {
	switch {
	case size >= 6:
		return models.SeverityCritical
	case size >= 4:
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

// CoordinatedRing links actors whose referred users share at least
// RingMinSharedLinks devices or IPs, then flags every member of a connected
// component of at least RingMinSize actors.
func CoordinatedRing(cfg Config, snap Snapshot) Result {
	// link key -> actor -> users behind that link
	links := map[string]map[id.ActorID][]id.UserID{}
	skipped := 0
	add := func(key string, actorID id.ActorID, userID id.UserID) {
		m := links[key]
		if m == nil {
			m = map[id.ActorID][]id.UserID{}
			links[key] = m
		}
		m[actorID] = append(m[actorID], userID)
	}
	for _, rec := range snap.Records {
		p := rec.Provenance
		if p.DeviceID == "" && p.IP == "" {
			skipped++
			continue
		}
		if p.DeviceID != "" {
			add("device:"+p.DeviceID, rec.ActorID, rec.UserID)
		}
		if p.IP != "" {
			add("ip:"+p.IP, rec.ActorID, rec.UserID)
		}
	}

	index := map[id.ActorID]int{}
	var actors []id.ActorID
	indexOf := func(a id.ActorID) int {
		if i, ok := index[a]; ok {
			return i
		}
		index[a] = len(actors)
		actors = append(actors, a)
		return index[a]
	}

	type pair struct{ a, b int }
	shared := map[pair]int{}
	for _, byActor := range links {
		if len(byActor) < 2 || len(byActor) > maxActorsPerLink {
			continue
		}
		members := models.SortedActorIDs(actorKeys(byActor))
		for i := range members {
			for j := i + 1; j < len(members); j++ {
				shared[pair{indexOf(members[i]), indexOf(members[j])}]++
			}
		}
	}

	uf := newUnionFind(len(actors))
	for p, n := range shared {
		if n >= cfg.RingMinSharedLinks {
			uf.union(p.a, p.b)
		}
	}

	components := map[int][]id.ActorID{}
	for i, a := range actors {
		root := uf.find(i)
		components[root] = append(components[root], a)
	}

	var out []models.Signal
	for _, members := range components {
		if len(members) < cfg.RingMinSize {
			continue
		}
		members = models.SortedActorIDs(members)
		inRing := make(map[id.ActorID]struct{}, len(members))
		keys := make([]string, len(members))
		for i, a := range members {
			inRing[a] = struct{}{}
			keys[i] = a.String()
		}
		ringKey := strings.Join(keys, ",")
		size := len(members)

		for _, actorID := range members {
			ev := models.Evidence{
				ActorIDs: members,
				UserIDs:  ringUsers(links, actorID, inRing),
				Count:    size,
			}
			out = append(out, newSignal(models.TypeCoordinatedRing, ringSeverity(size), 20*size, actorID, ev, snap.Now, ringKey))
		}
	}
	return Result{Signals: sortSignals(out), Skipped: skipped}
}

// ringUsers returns the actor's users whose links are shared with another
// ring member.
func ringUsers(links map[string]map[id.ActorID][]id.UserID, actorID id.ActorID, ring map[id.ActorID]struct{}) []id.UserID {
	seen := map[id.UserID]struct{}{}
	var users []id.UserID
	for _, byActor := range links {
		own, ok := byActor[actorID]
		if !ok || len(byActor) > maxActorsPerLink {
			continue
		}
		sharedWithRing := false
		for other := range byActor {
			if _, member := ring[other]; member && other != actorID {
				sharedWithRing = true
				break
			}
		}
		if !sharedWithRing {
			continue
		}
		for _, u := range own {
			if _, dup := seen[u]; !dup {
				seen[u] = struct{}{}
				users = append(users, u)
			}
		}
	}
	return models.SortedUserIDs(users)
}

func actorKeys(m map[id.ActorID][]id.UserID) []id.ActorID {
	out := make([]id.ActorID, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	return out
}
