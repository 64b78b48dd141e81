package regex

import "github.com/jespajo/votemap/pkg/container"

// Capture is one captured substring's bounds within the matched input.
// Start and End are -1 when the group didn't participate in the match.
type Capture struct {
	Start, End int
}

func (c Capture) ok() bool { return c.Start >= 0 && c.End >= 0 }

// Match is the result of running a Regex against a string. Captures is
// indexed by capture-group number; there is no whole-match slot, since a
// successful match always spans the whole of the input string.
type Match struct {
	Success  bool
	Captures []Capture
}

// Group returns the substring captured by group index n of s, and whether
// that group participated in the match.
func (m *Match) Group(s string, n int) (string, bool) {
	if !m.Success || n >= len(m.Captures) {
		return "", false
	}
	c := m.Captures[n]
	if !c.ok() {
		return "", false
	}
	return s[c.Start:c.End], true
}

// NamedCaptures returns every named capture group's matched text, keyed by
// name and ordered by the groups' position in the pattern, mirroring the
// original's copy_named_capture_groups.
func (m *Match) NamedCaptures(re *Regex, s string) *container.Map[string, string] {
	out := container.NewMap[string, string](container.StringHash)
	for i, name := range re.GroupNames {
		if name == "" {
			continue
		}
		if v, ok := m.Group(s, i); ok {
			out.Set(name, v)
		}
	}
	return out
}

type thread struct {
	pc    int
	saves []int
}

type threadList struct {
	threads []thread
	seen    []bool
	gen     []int
	curGen  int
}

func newThreadList(progLen int) *threadList {
	return &threadList{seen: make([]bool, progLen), gen: make([]int, progLen)}
}

func (tl *threadList) reset() {
	tl.curGen++
	tl.threads = tl.threads[:0]
}

func (tl *threadList) visited(pc int) bool {
	return tl.gen[pc] == tl.curGen
}

func (tl *threadList) markVisited(pc int) {
	tl.gen[pc] = tl.curGen
}

// Run executes re against s and reports whether the whole of s matches.
// Regex patterns match the full string by default; run ".*?PAT.*" style
// patterns yourself to emulate substring search.
func Run(re *Regex, s string) *Match {
	prog := re.Program
	n := len(s)
	numSlots := 2 * re.NumGroups()

	clist := newThreadList(len(prog))
	nlist := newThreadList(len(prog))

	initSaves := make([]int, numSlots)
	for i := range initSaves {
		initSaves[i] = -1
	}

	clist.reset()
	addThread(clist, prog, 0, initSaves, 0)

	var matched *Match

	for pos := 0; pos <= n; pos++ {
		if len(clist.threads) == 0 {
			break
		}
		nlist.reset()

		var b byte
		hasByte := pos < n
		if hasByte {
			b = s[pos]
		}

		for _, t := range clist.threads {
			in := prog[t.pc]
			switch in.op {
			case opMatch:
				if pos == n {
					// Highest-priority thread to reach MATCH at the end wins;
					// lower-priority threads in this list are discarded.
					saves := append([]int(nil), t.saves...)
					matched = buildMatch(saves)
					goto done
				}
				// Reached MATCH before consuming the whole string: this
				// thread's path doesn't represent a full-string match.
			case opChar:
				if hasByte && b == in.c {
					addThread(nlist, prog, t.pc+1, t.saves, pos+1)
				}
			case opByteClass:
				if hasByte && in.class.matches(b) {
					addThread(nlist, prog, t.pc+1, t.saves, pos+1)
				}
			case opAny:
				if hasByte {
					addThread(nlist, prog, t.pc+1, t.saves, pos+1)
				}
			default:
				panic("regex: unexpected opcode in VM thread list")
			}
		}

		clist, nlist = nlist, clist
	}

done:
	if matched == nil {
		return &Match{Success: false}
	}
	return matched
}

// addThread follows every non-consuming instruction (SAVE, JUMP, SPLIT)
// reachable from pc without advancing the input position, appending the
// consuming instructions (and MATCH) it lands on to list in priority
// order. Each program counter is only ever added once per position.
func addThread(list *threadList, prog Program, pc int, saves []int, pos int) {
	if list.visited(pc) {
		return
	}
	list.markVisited(pc)

	in := prog[pc]
	switch in.op {
	case opJump:
		addThread(list, prog, in.next[0], saves, pos)
	case opSplit:
		addThread(list, prog, in.next[0], saves, pos)
		addThread(list, prog, in.next[1], saves, pos)
	case opSave:
		next := append([]int(nil), saves...)
		next[in.save] = pos
		addThread(list, prog, pc+1, next, pos)
	default:
		list.threads = append(list.threads, thread{pc: pc, saves: saves})
	}
}

func buildMatch(saves []int) *Match {
	numGroups := len(saves) / 2
	out := make([]Capture, numGroups)
	for g := 0; g < numGroups; g++ {
		out[g] = Capture{Start: saves[2*g], End: saves[2*g+1]}
	}
	return &Match{Success: true, Captures: out}
}
