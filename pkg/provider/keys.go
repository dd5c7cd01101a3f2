package provider

import (
	"github.com/statwatch/stats-proxy/pkg/cache"
)

// Resource key builders. Handlers and providers must derive keys through
// these so the cache key, job-dedup key and fixture filename always agree.

// PlayerKey keys an OpenDota player profile.
func PlayerKey(accountID string) cache.Key {
	return cache.NewKey(string(ServiceOpenDota), "player", accountID)
}

// PlayerFacetKey keys a player sub-resource (totals, counts, heroes,
// matches).
func PlayerFacetKey(accountID, facet string) cache.Key {
	return cache.NewKey(string(ServiceOpenDota), "player", accountID, facet)
}

// HeroesKey keys the static hero list.
func HeroesKey() cache.Key {
	return cache.NewKey(string(ServiceOpenDota), "heroes")
}

// ItemsKey keys the static item table.
func ItemsKey() cache.Key {
	return cache.NewKey(string(ServiceOpenDota), "items")
}

// TeamKey keys a team-info lookup by name.
func TeamKey(name string) cache.Key {
	return cache.NewKey(string(ServiceSportsDB), "team", cache.SanitizeKey(name))
}

// TeamPlayersKey keys a team roster lookup.
func TeamPlayersKey(teamID string) cache.Key {
	return cache.NewKey(string(ServiceSportsDB), "team", teamID, "players")
}

// AveragesKey keys a secondary-stats season averages lookup.
func AveragesKey(playerID string) cache.Key {
	return cache.NewKey(string(ServiceBallDontLie), "player", playerID, "averages")
}

// DashboardConfigKey keys a stored dashboard configuration.
func DashboardConfigKey(id string) cache.Key {
	return cache.NewKey("dashboard-config", "", id)
}

// ShareConfigKey keys a shared configuration snapshot.
func ShareConfigKey(key string) cache.Key {
	return cache.NewKey("config", "share", key)
}
