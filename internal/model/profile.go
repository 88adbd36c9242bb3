package model

// ProfileUser holds the identity fields extracted from the remote document
type ProfileUser struct {
	ID             string `json:"id" bson:"id"`
	SecUID         string `json:"secUid" bson:"sec_uid"`
	Username       string `json:"username" bson:"username"`
	Nickname       string `json:"nickname" bson:"nickname"`
	Avatar         string `json:"avatar" bson:"avatar"`
	Signature      string `json:"signature" bson:"signature"`
	Verified       bool   `json:"verified" bson:"verified"`
	PrivateAccount bool   `json:"privateAccount" bson:"private_account"`
	Region         string `json:"region" bson:"region"`
	BioLink        string `json:"bioLink,omitempty" bson:"bio_link,omitempty"`
	CreateTime     int64  `json:"createTime" bson:"create_time"`
	Language       string `json:"language" bson:"language"`
	IsOrganization bool   `json:"isOrganization" bson:"is_organization"`
}

// ProfileStats holds the public counters extracted from the remote document
type ProfileStats struct {
	FollowerCount  int64 `json:"followerCount" bson:"follower_count"`
	FollowingCount int64 `json:"followingCount" bson:"following_count"`
	HeartCount     int64 `json:"heartCount" bson:"heart_count"`
	VideoCount     int64 `json:"videoCount" bson:"video_count"`
	DiggCount      int64 `json:"diggCount" bson:"digg_count"`
	FriendCount    int64 `json:"friendCount" bson:"friend_count"`
}

// ProfilePayload is the normalized profile produced by the fetcher and cached
// by the resolver
type ProfilePayload struct {
	Source string       `json:"source" bson:"source"`
	User   ProfileUser  `json:"user" bson:"user"`
	Stats  ProfileStats `json:"stats" bson:"stats"`
}
