// Package grounding holds the static domain rules that keep generated SQL
// consistent with the IPL dataset: canonical franchise naming, the
// player-to-match join conventions, composite statistics definitions, and
// the zero-indexed over convention. The policy is pure data, loaded once at
// process start and shared read-only across requests.
package grounding

import (
	"fmt"
	"sort"
	"strings"
)

// canonicalTeams are the full official franchise names as stored in the
// database. Queries must use these spellings, never historical or shorthand
// variants.
var canonicalTeams = []string{
	"Chennai Super Kings",
	"Delhi Capitals",
	"Gujarat Titans",
	"Kolkata Knight Riders",
	"Lucknow Super Giants",
	"Mumbai Indians",
	"Punjab Kings",
	"Rajasthan Royals",
	"Royal Challengers Bengaluru",
	"Sunrisers Hyderabad",
}

// teamAliases maps retired or colloquial franchise names to the canonical
// name stored in the database.
var teamAliases = map[string]string{
	"royal challengers bangalore": "Royal Challengers Bengaluru",
	"bangalore":                   "Royal Challengers Bengaluru",
	"rcb":                         "Royal Challengers Bengaluru",
	"kings xi punjab":             "Punjab Kings",
	"punjab":                      "Punjab Kings",
	"delhi daredevils":            "Delhi Capitals",
	"delhi":                       "Delhi Capitals",
	"csk":                         "Chennai Super Kings",
	"kkr":                         "Kolkata Knight Riders",
}

type Policy struct {
	minSampleBalls int
}

// NewPolicy builds the shared policy. minSampleBalls is the minimum number
// of deliveries required before a player qualifies for extremal rankings;
// it is configuration, never defaulted here.
func NewPolicy(minSampleBalls int) (*Policy, error) {
	if minSampleBalls <= 0 {
		return nil, fmt.Errorf("minimum sample balls must be positive, got %d", minSampleBalls)
	}
	return &Policy{minSampleBalls: minSampleBalls}, nil
}

func (p *Policy) MinSampleBalls() int {
	return p.minSampleBalls
}

// CanonicalTeamName resolves a franchise reference to its canonical database
// name. Unknown names are returned unchanged.
func (p *Policy) CanonicalTeamName(name string) string {
	trimmed := strings.TrimSpace(name)
	if canonical, ok := teamAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	for _, team := range canonicalTeams {
		if strings.EqualFold(team, trimmed) {
			return team
		}
	}
	return trimmed
}

func (p *Policy) CanonicalTeams() []string {
	teams := make([]string, len(canonicalTeams))
	copy(teams, canonicalTeams)
	sort.Strings(teams)
	return teams
}

// ExpansionRules is the grounding block injected into the question-expansion
// prompt.
func (p *Policy) ExpansionRules() string {
	return `A bowler or a batter must be referred to as a player.
Always include the statistics needed to compute the answer, such as number of balls, runs, wickets, or other context-specific data, along with the final result.
Do not suggest any column that is not defined in the given schema.
To find debut matches, use the match date to determine the first match played by a player.
Never mention internal ids; always use full names of players and teams.
When a match is referenced, describe it by its date, season, and the teams involved.`
}

// SynthesisRules is the grounding block injected into the SQL-synthesis
// prompt. It encodes the dataset conventions a correct query depends on.
func (p *Policy) SynthesisRules() string {
	var b strings.Builder
	b.WriteString(`Join conventions for player-to-match relationships:
1. Chasing or batting-second players: player_matches.team_id = matches.batting_second_team_id
2. Batting-first players: player_matches.team_id = matches.batting_first_team_id
3. Winning-team players: player_matches.team_id = matches.winner_id
4. Losing-team players: player_matches.team_id != matches.winner_id
5. Filter by player or team name, never by id: WHERE players.name = 'Virat Kohli' or WHERE teams.name = 'Mumbai Indians'
6. Season filters use matches.season = <year>.

Naming standards:
- Always use the standardized player and team names as stored in the database, with exact spelling and case.
- Use full official franchise names: `)
	b.WriteString(quotedTeamList())
	b.WriteString(`.
- 'Royal Challengers Bengaluru' (not 'Bangalore'), 'Punjab Kings' (not 'Kings XI Punjab'), 'Delhi Capitals' (not 'Delhi Daredevils').
- Never mention ids; always use full names of players and teams.
- For a match, show the match date, season, and teams involved.

Statistical conventions:
- Runs by a team is always batting runs plus extras: a team scoring 200 with 10 extras has a total of 210.
- In batting-first or chasing questions, do not assume the player is in the winning team; check the matches table for the correct side.
- If no season is specified, assume the whole IPL history for the player.
- When computing a matchup between two players, count only legitimate deliveries: exclude wides and no-balls using the deliveries table.
`)
	fmt.Fprintf(&b, "- For least/best style rankings, require a minimum sample of %d balls faced or balls bowled.\n", p.minSampleBalls)
	b.WriteString(`- Overs are zero-indexed in this database: over 0 is the first over, over 1 is the second, and so on. Account for this in any over-based filter.`)
	return b.String()
}

// SynthesisExamples are worked question-to-SQL pairs included in the
// synthesis prompt as few-shot guidance.
func (p *Policy) SynthesisExamples() string {
	return `Example 1 (player stat in a season):
"How many sixes did Rinku Singh hit in IPL 2023?"
SELECT SUM(T1.sixes)
FROM player_matches AS T1
JOIN players AS T2 ON T1.player_id = T2.id
JOIN matches AS T3 ON T1.match_id = T3.id
WHERE T2.name = 'Rinku Singh' AND T3.season = 2023;

Example 2 (chasing team performance):
"Top 3 six-hitters in successful chases over 180 runs"
SELECT T2.name, SUM(T1.sixes) AS total_sixes
FROM player_matches AS T1
JOIN players AS T2 ON T1.player_id = T2.id
JOIN matches AS T3 ON T1.match_id = T3.id
WHERE T3.batting_second_runs >= 180
  AND T3.winner_id = T3.batting_second_team_id
  AND T1.team_id = T3.batting_second_team_id
GROUP BY T2.id, T2.name
ORDER BY total_sixes DESC
LIMIT 3;`
}

func quotedTeamList() string {
	quoted := make([]string, 0, len(canonicalTeams))
	for _, team := range canonicalTeams {
		quoted = append(quoted, "'"+team+"'")
	}
	return strings.Join(quoted, ", ")
}
