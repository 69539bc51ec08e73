package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Key builders for the Redis namespace.

func SiteConfigKey(siteID uuid.UUID) string { return fmt.Sprintf("site:%s:config", siteID) }

func APIKeySiteKey(key string) string { return fmt.Sprintf("apikey:%s:site", key) }

func UserHashKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s", userID) }

// UserPasswordKey stores a local-credential password hash apart from the
// user hash, matching §3's "password hash stored separately".
func UserPasswordKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s:password", userID) }

func UserCommentsKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s:comments", userID) }

func UserVotesKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s:votes", userID) }

func VoteKey(userID, commentID uuid.UUID) string {
	return fmt.Sprintf("vote:%s:%s", userID, commentID)
}

func SiteRoleSetKey(siteID uuid.UUID, role string) string {
	return fmt.Sprintf("site:%s:%s", siteID, role)
}

func SiteAdminsKey(siteID uuid.UUID) string     { return SiteRoleSetKey(siteID, "admins") }
func SiteModeratorsKey(siteID uuid.UUID) string { return SiteRoleSetKey(siteID, "moderators") }
func SiteBlockedKey(siteID uuid.UUID) string    { return SiteRoleSetKey(siteID, "blocked") }
func SiteShadowbannedKey(siteID uuid.UUID) string {
	return SiteRoleSetKey(siteID, "shadowbanned")
}
func SiteLockedPagesKey(siteID uuid.UUID) string { return SiteRoleSetKey(siteID, "locked_pages") }

func SiteModQueueKey(siteID uuid.UUID) string { return fmt.Sprintf("site:%s:modqueue", siteID) }

func SiteReportsKey(siteID uuid.UUID) string { return fmt.Sprintf("site:%s:reports", siteID) }

func UserBlockedKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s:blocked", userID) }

func UserBlockedByKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s:blocked_by", userID) }

func PagePresenceKey(pageID uuid.UUID) string { return fmt.Sprintf("page:%s:presence", pageID) }

func PageTreeKey(pageID uuid.UUID) string { return fmt.Sprintf("page:%s:tree", pageID) }

func PageViewsKey(pageID uuid.UUID) string { return fmt.Sprintf("page:%s:views", pageID) }

func SessionKey(sessionID string) string { return fmt.Sprintf("session:%s", sessionID) }

func VerifyKey(key string) string { return fmt.Sprintf("verify:%s", key) }

func Web3NonceKey(chain, addr string) string { return fmt.Sprintf("web3nonce:%s:%s", chain, addr) }

func RateLimitKey(scope, id, bucket string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", scope, id, bucket)
}

func PageLockKey(pageID uuid.UUID) string { return fmt.Sprintf("lock:page:%s", pageID) }

// EmailIndexKey, PhoneIndexKey, UsernameIndexKey, ProviderIndexKey and
// WalletIndexKey back the secondary identity lookups the index keeper
// scrubs on account erasure.
func EmailIndexKey(email string) string       { return fmt.Sprintf("idx:email:%s", email) }
func PhoneIndexKey(phone string) string       { return fmt.Sprintf("idx:phone:%s", phone) }
func UsernameIndexKey(username string) string { return fmt.Sprintf("idx:username:%s", username) }
func ProviderIndexKey(provider, subject string) string {
	return fmt.Sprintf("idx:provider:%s:%s", provider, subject)
}
func WalletIndexKey(chain, addr string) string { return fmt.Sprintf("idx:wallet:%s:%s", chain, addr) }

// UserIdentitiesKey and UserWalletsKey hold the reverse mapping from a user
// back to the provider-identity and wallet index keys BindProvider/
// BindWallet claimed for them, so GDPR erasure can drop exactly those keys
// without having to scan the whole keyspace.
func UserIdentitiesKey(userID uuid.UUID) string { return fmt.Sprintf("user:%s:identities", userID) }
func UserWalletsKey(userID uuid.UUID) string     { return fmt.Sprintf("user:%s:wallets", userID) }

// PageEventsChannel is the pub/sub channel name for one page, matching the
// `threadkit:page:*:events` pattern the bridge subscribes to.
func PageEventsChannel(pageID uuid.UUID) string {
	return fmt.Sprintf("threadkit:page:%s:events", pageID)
}
