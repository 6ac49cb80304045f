// Package mongo implements job.Store on MongoDB using the official v2
// driver. Instances are documents in the jobrun_instances collection keyed
// by instance ID. Timestamps are stored at millisecond precision.
//
// The caller owns the *mongo.Client lifecycle; the store never disconnects
// it. Pass the database handle through the constructor:
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client.Database("jobrun"))
//	store.Migrate(ctx)
package mongo
